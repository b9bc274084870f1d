package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryatsv/chapel/internal/card"
)

func newCardCmd() *cobra.Command {
	var (
		output   string
		nameA    string
		nameB    string
		days     int
		messages int64
	)

	cmd := &cobra.Command{
		Use:   "card",
		Short: "Render a sample statistics card to a PNG file",
		Long:  "Renders a couple statistics card with placeholder avatars. Useful for checking fonts and layout without a live chat.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCard(cmd, output, nameA, nameB, days, messages)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "card.png", "output PNG path")
	cmd.Flags().StringVar(&nameA, "a", "Alice", "first partner name")
	cmd.Flags().StringVar(&nameB, "b", "Bob", "second partner name")
	cmd.Flags().IntVar(&days, "days", 365, "days together")
	cmd.Flags().Int64Var(&messages, "messages", 10000, "messages together")
	return cmd
}

func runCard(cmd *cobra.Command, output, nameA, nameB string, days int, messages int64) error {
	img := card.Render(card.Opts{
		NameA:      nameA,
		NameB:      nameB,
		Days:       days,
		Messages:   messages,
		FormedDate: time.Now().AddDate(0, 0, -days).Format("02.01.2006"),
	})

	data, err := card.EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, len(data))
	return nil
}
