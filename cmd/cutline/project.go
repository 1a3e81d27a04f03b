package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/session"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/keagan/cutline/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [project file]",
	Short: "Print the ffmpeg invocation for a project without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := pipeline.LoadProject(args[0])
		if err != nil {
			return err
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		plan, err := pipe.Plan(cmd.Context(), project)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, in := range plan.Inputs {
			fmt.Fprintf(out, "input  %-14s %-6s %s\n", in.Name, in.Kind, in.Source.Ref)
		}
		if graph := plan.FilterGraph(); graph != "" {
			fmt.Fprintf(out, "graph  %s\n", graph)
		}
		fmt.Fprintf(out, "ffmpeg %s\n", strings.Join(plan.Args(), " "))
		return nil
	},
}

var composeCmd = &cobra.Command{
	Use:   "compose [project file]",
	Short: "Bake a project's overlays into its video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		project, err := pipeline.LoadProject(args[0])
		if err != nil {
			return err
		}

		pipe, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		last := -10
		res, err := pipe.Export(cmd.Context(), project, pipeline.ExportOptions{
			OutputPath: output,
			Progress: func(pct int) {
				// log every 10%
				if pct/10 != last/10 {
					last = pct
					log.Info().Int("progress", pct).Msg("compositing")
				}
			},
		})
		if err != nil {
			return err
		}

		log.Info().
			Str("output", output).
			Str("job", res.JobID).
			Dur("elapsed", res.Elapsed).
			Msg("compose complete")
		return nil
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline [design file]",
	Short: "Project a design's elements onto the timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		at, _ := cmd.Flags().GetFloat64("at")
		playing, _ := cmd.Flags().GetBool("playing")
		lang, _ := cmd.Flags().GetString("lang")
		if lang == "" {
			lang = cfg.Transcript.Language
		}

		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		pps := cfg.Timeline.PixelsPerSecond
		state := session.New(lang)
		state.SetCurrentTime(util.PixelsFromDuration(at*1000, pps))
		state.SetPlaying(playing)

		projector := timeline.NewProjector(doc, timeline.Options{
			PixelsPerSecond:   pps,
			DefaultDurationMs: cfg.Timeline.DefaultDurationMs,
			LegacyPlayWindow:  cfg.Timeline.LegacyPlayWindow,
		})
		elements := projector.Project(state.Snapshot())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tSTART\tEND\tVISIBLE\tPLAYING")
		for _, p := range elements {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n",
				p.ID, p.Kind,
				util.FormatClock(util.SecondsFromPixels(p.StartAt, pps)),
				util.FormatClock(util.SecondsFromPixels(p.EndAt, pps)),
				p.Visible, p.IsPlaying)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		total := util.SecondsFromPixels(timeline.MaxEndAt(elements), pps)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s / %s  languages: %s\n",
			util.FormatClock(at), util.FormatClock(total), strings.Join(doc.Languages(), ","))
		return nil
	},
}

func loadDocument(path string) (*timeline.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read design: %w", err)
	}
	doc := &timeline.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func saveDocument(path string, doc *timeline.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func init() {
	composeCmd.Flags().StringP("output", "o", "output.mp4", "output video path")

	timelineCmd.Flags().Float64("at", 0, "current time in seconds")
	timelineCmd.Flags().Bool("playing", false, "project as if playback were running")
	timelineCmd.Flags().String("lang", "", "transcript language to show")
}
