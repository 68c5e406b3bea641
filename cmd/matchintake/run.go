package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tactico/go-matchintake/internal/client"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/wizard"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		teamID   string
		opponent string
		date     string
		sport    string
		video    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a match, upload its video and wait for the analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntake(cfg, teamID, opponent, date, sport, video)
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team ID the match belongs to")
	cmd.Flags().StringVar(&opponent, "opponent", "", "opponent name")
	cmd.Flags().StringVar(&date, "date", "", "match date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sport, "sport", "soccer", "sport (only soccer is supported)")
	cmd.Flags().StringVar(&video, "video", "", "path to the match video file")
	cmd.MarkFlagRequired("team")
	cmd.MarkFlagRequired("opponent")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("video")
	return cmd
}

func runIntake(cfg *config.Config, teamID, opponent, date, sport, video string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(video)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}

	updates := make(chan wizard.State, 64)
	api := client.New(cfg.Backend)
	ctrl := wizard.NewController(cfg, api, wizard.WithOnChange(func(s wizard.State) {
		select {
		case updates <- s:
		default: // progress prints may drop, the fallback ticker catches up
		}
	}))
	defer ctrl.Reset()

	step := color.New(color.FgCyan, color.Bold)

	step.Println("» details")
	draft := models.MatchDraft{TeamID: teamID, Opponent: opponent, Sport: sport, Date: date}
	if err := ctrl.SubmitDetails(ctx, draft); err != nil {
		return err
	}
	fmt.Printf("  match created: %s vs %s on %s\n", teamID, opponent, date)

	step.Printf("» upload (%s in %s chunks)\n", humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(cfg.Upload.ChunkSize)))
	if err := ctrl.StartUpload(ctx, f, info.Size()); err != nil {
		return err
	}

	return watch(ctx, ctrl, updates, step)
}

// watch follows wizard state changes until the pipeline finishes one way
// or the other.
func watch(ctx context.Context, ctrl *wizard.Controller, updates <-chan wizard.State, step *color.Color) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last wizard.State
	analysisAnnounced := false

	handle := func(s wizard.State) (done bool, err error) {
		if s.Step == wizard.StepUpload && s.Upload.UploadedChunks != last.Upload.UploadedChunks {
			fmt.Printf("  chunk %d/%d acknowledged (%d%%)\n",
				s.Upload.UploadedChunks, s.Upload.TotalChunks, s.Upload.Percentage())
		}
		if s.Upload.State == models.SessionFailed {
			return true, fmt.Errorf("upload failed: %s", s.ErrText)
		}
		if s.Step >= wizard.StepAnalysis && !analysisAnnounced {
			analysisAnnounced = true
			step.Println("» analysis")
		}
		if s.Step == wizard.StepAnalysis && s.Job.Status.IsTerminal() && s.Job.Status != models.JobStatusCompleted {
			return true, fmt.Errorf("analysis %s: %s", s.Job.Status, s.ErrText)
		}
		if s.Step == wizard.StepAnalysis && s.Job.Progress != last.Job.Progress {
			fmt.Printf("  job %s: %d%%\n", s.Job.Status, s.Job.Progress)
		}
		if s.Step == wizard.StepComplete {
			step.Println("» complete")
			color.Green("  analysis finished for match %s", s.MatchID)
			return true, nil
		}
		last = s
		return false, nil
	}

	for {
		select {
		case s := <-updates:
			if done, err := handle(s); done {
				return err
			}
		case <-ticker.C:
			if done, err := handle(ctrl.State()); done {
				return err
			}
		case <-ctx.Done():
			return errors.New("interrupted")
		}
	}
}
