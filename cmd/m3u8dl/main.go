package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"m3u8dl/internal/hls"
	"m3u8dl/internal/merge"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

func newRootCmd(fv *flagValues) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "m3u8dl [flags] <url|file>",
		Short:         "Download an HLS stream into a single media file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(fv)
			if err != nil {
				return err
			}
			result, err := a.session().Run(context.Background(), a.options(args[0], fv))
			if result != nil {
				result.Report.Log(a.log)
			}
			return err
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&fv.configFile, "config", "c", "", "Path to the YAML config file")
	pf.StringVarP(&fv.overrides.BaseURL, "base-url", "b", "", "Base URL for relative segment paths")
	pf.StringArrayVarP(&fv.overrides.Headers, "header", "H", nil, "Extra request header as Key:Value (repeatable)")
	pf.StringArrayVar(&fv.overrides.Proxies, "proxy", nil, "Weighted proxy as weight,url (repeatable)")
	pf.StringVarP(&fv.overrides.LogLevel, "log-level", "L", "", "Log level (error, warn, info, debug)")
	pf.StringVar(&fv.overrides.LogFormat, "log-format", "", "Log format (console, json)")
	pf.IntVar(&fv.variant, "variant", -1, "Variant index to use instead of the highest bandwidth")
	pf.StringVarP(&fv.output, "output", "o", "", "Output file (default: timestamp)")

	flags := rootCmd.Flags()
	flags.StringVarP(&fv.overrides.CacheDir, "dir", "d", "", "Cache directory for downloaded segments")
	flags.IntVarP(&fv.overrides.Workers, "workers", "w", 0, "Number of concurrent downloads")
	flags.IntVarP(&fv.overrides.Retry, "retry", "r", 0, "Attempts per segment")
	flags.StringVarP(&fv.format, "format", "f", "mp4", "Output format (mp4, ts, mkv, avi, flv)")
	flags.StringVar(&fv.overrides.FFmpeg, "ffmpeg", "", "Path to ffmpeg executable")
	flags.BoolVar(&fv.overrides.Simple, "simple", false, "Concatenate segments without ffmpeg")
	flags.BoolVar(&fv.overrides.KeepCache, "keep", false, "Keep cached segments after merging")
	flags.BoolVar(&fv.overrides.Force, "force", false, "Merge even if some segments failed")

	rootCmd.AddCommand(newResolveCmd(fv))
	return rootCmd
}

func newResolveCmd(fv *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <url|file>",
		Short: "Print the resolved playlist with absolute URLs and ads removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(fv)
			if err != nil {
				return err
			}
			res, err := a.session().Resolve(context.Background(), a.options(args[0], fv))
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if fv.output != "" {
				f, err := os.Create(fv.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if fv.master && res.Master != nil {
				return hls.EncodeMaster(w, res.Master)
			}
			return hls.EncodeMedia(w, res.SelectedPlaylist())
		},
	}
	cmd.Flags().BoolVar(&fv.master, "master", false, "Print the filtered master playlist instead of the selected variant")
	return cmd
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var missing *merge.MissingSegmentsError
	if errors.As(err, &missing) {
		return exitPartial
	}
	return exitFatal
}

func main() {
	rootCmd := newRootCmd(&flagValues{})
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
