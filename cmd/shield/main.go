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
	"log"
	"os"

	"github.com/spf13/cobra"
)

// serviceURL is where the shield service listens. Overridable per
// invocation with --service-url or SHIELD_SERVICE_URL.
var serviceURL string

var rootCmd = &cobra.Command{
	Use:   "shield",
	Short: "Scan URLs and ask questions against the shield service",
	Long: `shield is the command line companion to the shield service.
It scans URLs through the tiered pipeline, asks the assistant questions
grounded in scan history, and checks service health.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("SHIELD_SERVICE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:12310"
	}
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", defaultURL,
		"base URL of the shield service")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if serviceURL == "" {
			log.Fatal("service URL must not be empty")
		}
	}
}
