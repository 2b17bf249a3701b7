// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

var askURL string

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask the assistant about a URL or a past scan",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newServiceClient(serviceURL)

		var resp datatypes.AskResponse
		err := client.postJSON(cmd.Context(), "/v1/chat/ask",
			datatypes.AskRequest{Question: strings.Join(args, " "), URL: askURL}, &resp)
		if err != nil {
			return err
		}

		fmt.Println(resp.Answer)
		if resp.Grounded {
			fmt.Printf("\n(answered by %s, grounded in scan history)\n", resp.Provider)
		} else {
			fmt.Printf("\n(answered by %s)\n", resp.Provider)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the service's authenticated session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newServiceClient(serviceURL)
		if err := client.postJSON(cmd.Context(), "/v1/session/logout", struct{}{}, nil); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askURL, "url", "", "pin the question to a previously scanned URL")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(logoutCmd)
}
