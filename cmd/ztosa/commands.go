package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/zerfoo/ztosa/internal/config"
	"github.com/zerfoo/ztosa/pkg/converter"
	"github.com/zerfoo/ztosa/pkg/graph"
	"github.com/zerfoo/ztosa/pkg/inspector"
	"github.com/zerfoo/ztosa/pkg/lowering"
	"github.com/zerfoo/ztosa/pkg/operators"
	"github.com/zerfoo/ztosa/pkg/quantizer"
	"github.com/zerfoo/ztosa/pkg/serializer"
	"github.com/zerfoo/ztosa/pkg/tosa"
)

func addSpecFlag(cmd *cobra.Command, a *app) {
	cmd.Flags().StringArrayVar(&a.specs, "spec", nil,
		"TOSA spec to lower for, e.g. TOSA-0.80+BI or TOSA-1.0+INT+FP (repeatable; overrides config and "+config.EnvSpec+")")
}

func newLowerCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "lower <program.yaml>",
		Short: "Lower an exported program for one or more TOSA specs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := a.cfg.ParseSpecs()
			if err != nil {
				return err
			}
			program, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))

			paths := make([]string, len(specs))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, spec := range specs {
				paths[i] = filepath.Join(outDir, outputName(base, spec))
				g.Go(func() error {
					return a.lowerOne(ctx, program, spec, paths[i])
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for i, spec := range specs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", spec, paths[i])
			}
			return nil
		},
	}
	addSpecFlag(cmd, a)
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "directory for the lowered graphs (default: next to the input)")
	return cmd
}

// lowerOne runs one session with its own registry and accumulator.
func (a *app) lowerOne(ctx context.Context, program *graph.ExportedProgram, spec tosa.Spec, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	visitors, err := operators.DefaultRegistry(spec)
	if err != nil {
		return err
	}
	data, err := lowering.Compile(program, spec, visitors, lowering.WithLogger(a.log))
	if err != nil {
		return errors.Wrap(err, spec.String())
	}
	a.log.WithField("spec", spec.String()).Infof("writing %d bytes to %s", len(data), path)
	return os.WriteFile(path, data, 0o644)
}

// outputName derives a file name per spec, e.g. model.tosa-1.0_int_fp.tosa.
func outputName(base string, spec tosa.Spec) string {
	slug := strings.ToLower(strings.ReplaceAll(spec.String(), "+", "_"))
	return base + "." + slug + ".tosa"
}

func newAnnotateCmd(a *app) *cobra.Command {
	var (
		output string
		rules  []string
	)
	cmd := &cobra.Command{
		Use:   "annotate <program.yaml>",
		Short: "Stamp quantization annotations onto an exported program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qcfg, err := a.cfg.QuantizerConfig()
			if err != nil {
				return err
			}
			program, err := graph.Load(args[0])
			if err != nil {
				return err
			}
			annotator := quantizer.NewAnnotator(quantizer.DefaultRegistry(), qcfg).WithLogger(a.log)
			matches, err := annotator.Annotate(program.Graph, rules...)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0]
			}
			if err := graph.Save(output, program); err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes\n", m.Rule, len(m.Nodes))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "path for the annotated program (default: overwrite the input)")
	cmd.Flags().StringArrayVar(&rules, "rule", nil, "rule to run (repeatable; default: all)")
	cmd.Flags().StringVar(&a.preset, "preset", "", "quantization preset: 'symmetric-int8' or 'affine-int8' (overrides config)")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	var fileType string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print a summary of a TOSA graph, exported program or ZMF model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := inspector.Kind(strings.ToLower(fileType))
			if kind == "" {
				var err error
				if kind, err = inspector.DetectKind(args[0]); err != nil {
					return errors.Wrap(err, "please specify --type")
				}
			}
			return inspector.Inspect(cmd.OutOrStdout(), kind, args[0])
		},
	}
	cmd.Flags().StringVar(&fileType, "type", "", "file type: 'tosa', 'program' or 'zmf'")
	return cmd
}

func newExportZMFCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-zmf <program.yaml|graph.tosa>",
		Short: "Convert a lowered graph to a ZMF model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadLowered(args[0])
			if err != nil {
				return err
			}
			model, err := converter.TOSAToZMF(g)
			if err != nil {
				return err
			}
			data, err := proto.Marshal(model)
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".zmf"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Output saved to: %s\n", output)
			return nil
		},
	}
	addSpecFlag(cmd, a)
	cmd.Flags().StringVarP(&output, "output", "o", "", "path for the ZMF file")
	return cmd
}

// loadLowered decodes a serialized graph, or lowers a program file for the
// first configured spec.
func (a *app) loadLowered(path string) (*tosa.Graph, error) {
	if kind, err := inspector.DetectKind(path); err == nil && kind == inspector.KindProgram {
		specs, err := a.cfg.ParseSpecs()
		if err != nil {
			return nil, err
		}
		program, err := graph.Load(path)
		if err != nil {
			return nil, err
		}
		visitors, err := operators.DefaultRegistry(specs[0])
		if err != nil {
			return nil, err
		}
		s, err := lowering.NewSession(program, specs[0], visitors, lowering.WithLogger(a.log))
		if err != nil {
			return nil, err
		}
		return s.Lower()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, _, err := serializer.Decode(data)
	return g, err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ztosa version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ztosa %s\n", converter.ProducerVersion)
			return nil
		},
	}
}
