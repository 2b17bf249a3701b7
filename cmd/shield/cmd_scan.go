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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

var scanJSONOutput bool

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan a URL through the tiered pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newServiceClient(serviceURL)

		var result datatypes.ScanResult
		err := client.postJSON(cmd.Context(), "/v1/scan/assess",
			datatypes.AssessRequest{URL: args[0]}, &result)
		if err != nil {
			return err
		}

		if scanJSONOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printScanResult(&result)
		return nil
	},
}

func printScanResult(res *datatypes.ScanResult) {
	fmt.Printf("Verdict:    %s\n", res.Verdict)
	fmt.Printf("Risk:       %s (%.2f)\n", res.RiskLevel, res.RiskScore)
	fmt.Printf("Confidence: %.2f\n", res.Confidence)
	if res.ScanTier != "" {
		fmt.Printf("Tier:       %s\n", res.ScanTier)
	}
	if len(res.Indicators) > 0 {
		fmt.Println("Indicators:")
		for _, ind := range res.Indicators {
			fmt.Printf("  - [%s] %s\n", ind.Severity, ind.Description)
		}
	}
	if len(res.Reasoning) > 0 {
		fmt.Println("Reasoning:")
		for _, r := range res.Reasoning {
			fmt.Printf("  - %s\n", r)
		}
	}
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSONOutput, "json", false, "print the raw scan result as JSON")
	rootCmd.AddCommand(scanCmd)
}
