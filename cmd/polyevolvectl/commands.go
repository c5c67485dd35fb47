package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"polyevolve/internal/config"
	"polyevolve/internal/session"
	"polyevolve/pkg/polyevolve"
)

func newNewCmd(a *app) *cobra.Command {
	var (
		target      string
		out         string
		shapes      int
		vertices    int
		initializer string
		mutator     string
		evaluator   string
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a seeded snapshot file from a target image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" || out == "" {
				return errors.New("new requires --target and --out")
			}
			cfg := a.cfg
			if cmd.Flags().Changed("shapes") {
				cfg.Shapes = shapes
			}
			if cmd.Flags().Changed("vertices") {
				cfg.Vertices = vertices
			}
			if cmd.Flags().Changed("initializer") {
				cfg.Initializer = initializer
			}
			if cmd.Flags().Changed("mutator") {
				cfg.Mutator = mutator
			}
			if cmd.Flags().Changed("evaluator") {
				cfg.Evaluator = evaluator
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			img, err := readImage(target)
			if err != nil {
				return err
			}
			var s *session.Session
			err = a.withClientConfig(cmd, cfg, func(client *polyevolve.Client) error {
				s, err = client.NewSession(cmd.Context(), polyevolve.SessionRequest{
					Shapes:      cfg.Shapes,
					Vertices:    cfg.Vertices,
					Target:      img,
					Initializer: cfg.Initializer,
					Mutator:     cfg.Mutator,
					Evaluator:   cfg.Evaluator,
					Seed:        seed,
				})
				return err
			})
			if err != nil {
				return err
			}
			if err := s.SaveFile(out); err != nil {
				return err
			}
			best, _ := s.BestMatch()
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%dx%d, %d shapes x %d vertices, divergence %.6f)\n",
				out, s.ImageWidth(), s.ImageHeight(), s.Shapes(), s.Vertices(), best.Divergence)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&target, "target", "", "target image (png, jpeg, bmp or webp)")
	flags.StringVarP(&out, "out", "o", "", "snapshot file to write")
	flags.IntVar(&shapes, "shapes", 0, "shape count")
	flags.IntVar(&vertices, "vertices", 0, "vertices per shape")
	flags.StringVar(&initializer, "initializer", "", "initializer plugin tag")
	flags.StringVar(&mutator, "mutator", "", "mutator plugin tag")
	flags.StringVar(&evaluator, "evaluator", "", "evaluator plugin tag")
	flags.Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")
	return cmd
}

type snapshotInfo struct {
	ProjectFile        string           `json:"project_file,omitempty"`
	Shapes             int              `json:"shapes"`
	Vertices           int              `json:"vertices"`
	ImageWidth         int              `json:"image_width"`
	ImageHeight        int              `json:"image_height"`
	Divergence         float64          `json:"divergence"`
	ImprovementCounter int              `json:"improvement_counter"`
	MutationCounter    int64            `json:"mutation_counter"`
	ElapsedSeconds     float64          `json:"elapsed_seconds"`
	Initializer        string           `json:"initializer"`
	Mutator            string           `json:"mutator"`
	Evaluator          string           `json:"evaluator"`
	Stats              []statRow        `json:"stats"`
}

type statRow struct {
	Kind        string  `json:"kind"`
	Count       int     `json:"count"`
	Improvement float64 `json:"improvement"`
}

func describe(s *session.Session) snapshotInfo {
	best, _ := s.BestMatch()
	entries := s.Stats()
	rows := make([]statRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, statRow{Kind: e.Kind.String(), Count: e.Count, Improvement: e.Improvement})
	}
	return snapshotInfo{
		ProjectFile:        s.ProjectFile(),
		Shapes:             s.Shapes(),
		Vertices:           s.Vertices(),
		ImageWidth:         s.ImageWidth(),
		ImageHeight:        s.ImageHeight(),
		Divergence:         best.Divergence,
		ImprovementCounter: s.ImprovementCounter(),
		MutationCounter:    s.MutationCounter(),
		ElapsedSeconds:     s.Elapsed().Seconds(),
		Initializer:        s.Initializer().Tag(),
		Mutator:            s.Mutator().Tag(),
		Evaluator:          s.Evaluator().Tag(),
		Stats:              rows,
	}
}

func newInfoCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <snapshot>",
		Short: "Print a snapshot summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.ReadFile(args[0], session.WithLogger(a.logger))
			if err != nil {
				return err
			}
			info := describe(s)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			return printInfo(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printInfo(w io.Writer, info snapshotInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", info.ProjectFile)
	fmt.Fprintf(tw, "image\t%dx%d\n", info.ImageWidth, info.ImageHeight)
	fmt.Fprintf(tw, "genome\t%d shapes x %d vertices\n", info.Shapes, info.Vertices)
	fmt.Fprintf(tw, "divergence\t%.6f\n", info.Divergence)
	fmt.Fprintf(tw, "improvements\t%d\n", info.ImprovementCounter)
	fmt.Fprintf(tw, "mutations\t%d\n", info.MutationCounter)
	fmt.Fprintf(tw, "elapsed\t%s\n", time.Duration(info.ElapsedSeconds*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(tw, "plugins\t%s / %s / %s\n", info.Initializer, info.Mutator, info.Evaluator)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "KIND\tATTEMPTS\tIMPROVEMENT")
	for _, e := range info.Stats {
		fmt.Fprintf(tw, "%s\t%d\t%.6f\n", e.Kind, e.Count, e.Improvement)
	}
	return tw.Flush()
}

func newSVGCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "svg <snapshot>",
		Short: "Export the best match of a snapshot as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.ReadFile(args[0], session.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return s.WriteSVG(cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := s.WriteSVG(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage snapshots in the configured store",
	}

	var name string
	save := &cobra.Command{
		Use:   "save <snapshot>",
		Short: "Copy a snapshot file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(client *polyevolve.Client) error {
				s, err := session.ReadFile(args[0], session.WithLogger(a.logger))
				if err != nil {
					return err
				}
				if name == "" {
					name = filepath.Base(args[0])
				}
				record, err := client.Save(cmd.Context(), s, polyevolve.SaveRequest{Name: name})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), record.ID)
				return nil
			})
		},
	}
	save.Flags().StringVar(&name, "name", "", "snapshot name (defaults to the file name)")

	var out string
	load := &cobra.Command{
		Use:   "load <id>",
		Short: "Write a stored snapshot to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("load requires --out")
			}
			return a.withClient(cmd, func(client *polyevolve.Client) error {
				s, err := client.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return s.SaveFile(out)
			})
		},
	}
	load.Flags().StringVarP(&out, "out", "o", "", "snapshot file to write")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd, func(client *polyevolve.Client) error {
				records, err := client.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSAVED\tSIZE\tGENOME\tDIVERGENCE\tIMPROVEMENTS")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\t%dx%d\t%.6f\t%d\n",
						r.ID, r.Name, r.SavedAt.Format(time.RFC3339),
						r.ImageWidth, r.ImageHeight, r.Shapes, r.Vertices,
						r.Divergence, r.ImprovementCounter)
				}
				return tw.Flush()
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete stored snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(client *polyevolve.Client) error {
				for _, id := range args {
					if err := client.Delete(cmd.Context(), id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(save, load, list, rm)
	return cmd
}

func (a *app) withClient(cmd *cobra.Command, fn func(*polyevolve.Client) error) error {
	return a.withClientConfig(cmd, a.cfg, fn)
}

func (a *app) withClientConfig(cmd *cobra.Command, cfg config.Config, fn func(*polyevolve.Client) error) error {
	client, err := polyevolve.Open(cmd.Context(), polyevolve.OptionsFromConfig(cfg, a.logger, nil))
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
