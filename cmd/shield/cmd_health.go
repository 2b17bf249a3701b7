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

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the shield service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newServiceClient(serviceURL)

		var status struct {
			Status  string `json:"status"`
			Service string `json:"service"`
		}
		if err := client.getJSON(cmd.Context(), "/health", &status); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", status.Service, status.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
