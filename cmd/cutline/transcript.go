package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Transcript service commands",
}

var transcriptGenerateCmd = &cobra.Command{
	Use:   "generate [design file]",
	Short: "Transcribe the design's video and place captions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")

		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		ids, err := pipe.Transcribe(cmd.Context(), doc, lang)
		if err != nil {
			return err
		}
		if err := saveDocument(args[0], doc); err != nil {
			return err
		}

		log.Info().Int("segments", len(ids)).Str("design", args[0]).Msg("transcript placed")
		return nil
	},
}

var transcriptTranslateCmd = &cobra.Command{
	Use:   "translate [design file]",
	Short: "Translate the design's transcript into another language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")

		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		ids, err := pipe.Translate(cmd.Context(), doc, lang)
		if err != nil {
			return err
		}
		if err := saveDocument(args[0], doc); err != nil {
			return err
		}

		log.Info().Int("segments", len(ids)).Str("language", lang).Msg("translation placed")
		return nil
	},
}

var transcriptExportCmd = &cobra.Command{
	Use:   "export [design file]",
	Short: "Render the design through the export service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		data, err := pipe.RemoteExport(cmd.Context(), doc)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return err
		}

		log.Info().Str("output", output).Int("bytes", len(data)).Msg("export complete")
		return nil
	},
}

func init() {
	transcriptGenerateCmd.Flags().String("lang", "", "spoken language (default from config)")
	transcriptTranslateCmd.Flags().String("lang", "", "target language")
	transcriptTranslateCmd.MarkFlagRequired("lang")
	transcriptExportCmd.Flags().StringP("output", "o", "export.mp4", "output video path")

	transcriptCmd.AddCommand(transcriptGenerateCmd)
	transcriptCmd.AddCommand(transcriptTranslateCmd)
	transcriptCmd.AddCommand(transcriptExportCmd)
}
