package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var designCmd = &cobra.Command{
	Use:   "design",
	Short: "Saved design commands",
}

var designSaveCmd = &cobra.Command{
	Use:   "save [design file]",
	Short: "Store a design with a preview of its video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		previewAt, _ := cmd.Flags().GetDuration("preview-at")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		var preview []byte
		if video, ok := doc.FirstVideo(); ok {
			pipe, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer pipe.Close()

			preview, err = pipe.Preview(cmd.Context(), video.Src, previewAt, 480)
			if err != nil {
				// the design is still worth saving
				log.Warn().Err(err).Msg("failed to render preview")
			}
		}

		designs, store, err := openDesigns(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err = designs.Save(cmd.Context(), id, name, raw, preview)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var designLoadCmd = &cobra.Command{
	Use:   "load [id]",
	Short: "Write a stored design to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		designs, store, err := openDesigns(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var id string
		if len(args) == 1 {
			id = args[0]
		} else if id, err = designs.LastID(cmd.Context()); err != nil {
			return fmt.Errorf("no design id given and no last design: %w", err)
		}

		design, err := designs.Load(cmd.Context(), id)
		if err != nil {
			return err
		}

		if output == "" {
			_, err := cmd.OutOrStdout().Write(append(design.Document, '\n'))
			return err
		}
		if err := os.WriteFile(output, design.Document, 0644); err != nil {
			return err
		}
		if len(design.Preview) > 0 {
			preview := strings.TrimSuffix(output, filepath.Ext(output)) + ".jpg"
			if err := os.WriteFile(preview, design.Preview, 0644); err != nil {
				return err
			}
		}

		log.Info().Str("id", id).Str("output", output).Msg("design loaded")
		return nil
	},
}

var designListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored designs",
	RunE: func(cmd *cobra.Command, args []string) error {
		designs, store, err := openDesigns(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := designs.List(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
		for _, d := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, d.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var designDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored design",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		designs, store, err := openDesigns(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		return designs.Delete(cmd.Context(), args[0])
	},
}

func init() {
	designSaveCmd.Flags().String("id", "", "design id to overwrite (default: new id)")
	designSaveCmd.Flags().String("name", "", "design name (default: file name)")
	designSaveCmd.Flags().Duration("preview-at", time.Second, "video offset for the preview frame")
	designLoadCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	designCmd.AddCommand(designSaveCmd)
	designCmd.AddCommand(designLoadCmd)
	designCmd.AddCommand(designListCmd)
	designCmd.AddCommand(designDeleteCmd)
}
