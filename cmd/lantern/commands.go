package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/lanternml/lantern/compile"
	"github.com/lanternml/lantern/darknet"
	"github.com/lanternml/lantern/model"
)

func newRootCommand() *cobra.Command {
	var quiet, verbose bool

	cmd := &cobra.Command{
		Use:          "lantern",
		Short:        "Import, run and compile Darknet models",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	cmd.AddCommand(convertCmd(&quiet, &verbose))
	cmd.AddCommand(predictCmd())
	cmd.AddCommand(compileCmd(&verbose))
	cmd.AddCommand(runCmd(&quiet, &verbose))
	cmd.AddCommand(infoCmd())
	return cmd
}

func convertCmd(quiet, verbose *bool) *cobra.Command {
	var (
		out          string
		stepInterval time.Duration
		lagThreshold time.Duration
		prefix       string
	)

	cmd := &cobra.Command{
		Use:   "convert <config.cfg> <model.weights>",
		Short: "Convert a Darknet model into a lantern map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []darknet.Option{darknet.WithLogger(newLogger(*verbose))}

			var bar *pb.ProgressBar
			if !*quiet {
				opts = append(opts, darknet.WithProgress(func(read, total int64) {
					if bar == nil && total > 0 {
						bar = pb.New64(total).SetUnits(pb.U_BYTES)
						bar.Output = cmd.ErrOrStderr()
						bar.Start()
					}
					if bar != nil {
						bar.Set64(read)
					}
				}))
			}

			p, err := darknet.FromFiles(args[0], args[1], opts...)
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				return err
			}

			mopts := []model.Option{model.WithFunctionPrefix(prefix)}
			if stepInterval > 0 {
				mopts = append(mopts, model.WithStepInterval(stepInterval))
			}
			if lagThreshold > 0 {
				mopts = append(mopts, model.WithLagThreshold(lagThreshold))
			}
			m, err := model.FromPredictor(p, mopts...)
			if err != nil {
				return err
			}
			if err := m.Save(out); err != nil {
				return err
			}
			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s -> %s, %d params)\n",
					out, p.InShape(), p.OutShape(), p.Params())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "model.map", "Output map path")
	cmd.Flags().DurationVar(&stepInterval, "step-interval", 0, "Steppable execution interval")
	cmd.Flags().DurationVar(&lagThreshold, "lag-threshold", 0, "Lag reporting threshold for steppable runs")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Generated-function name prefix")
	return cmd
}

func predictCmd() *cobra.Command {
	var (
		inputPath  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "predict <model.map>",
		Short: "Run one inference through a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0])
			if err != nil {
				return err
			}
			p, err := m.Predictor()
			if err != nil {
				return err
			}
			input, err := readInput(inputPath, p.InShape().Size())
			if err != nil {
				return err
			}
			out, err := p.Predict(input)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			}
			for i, v := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.6f\n", i, v)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Whitespace-separated input values (default: zeros)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func compileCmd(verbose *bool) *cobra.Command {
	var (
		out         string
		target      string
		module      string
		function    string
		useBLAS     bool
		double      bool
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "compile <model.map>",
		Short: "Compile a map and emit Go source for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0])
			if err != nil {
				return err
			}
			opts := compile.Options{
				UseBLAS:     useBLAS,
				Parallelism: parallelism,
			}
			if double {
				opts.Precision = compile.Float64
			}
			c, err := compile.Compile(m, target, module, function, opts)
			if err != nil {
				return err
			}
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			err = c.EmitGo(file)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if *verbose {
				log.Printf("compiled %s: module=%s function=%s %+v", args[0], c.Module(), c.Function(), opts)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "model.go", "Output Go source path")
	cmd.Flags().StringVar(&target, "target", "host", "Target platform")
	cmd.Flags().StringVar(&module, "module", "model", "Emitted package name")
	cmd.Flags().StringVar(&function, "function", "", "Emitted function name (default: map prefix + Predict)")
	cmd.Flags().BoolVar(&useBLAS, "blas", false, "Use the BLAS-backed linear-algebra path")
	cmd.Flags().BoolVar(&double, "float64", false, "Accumulate in double precision")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Kernel goroutine bound")
	return cmd
}

func runCmd(quiet, verbose *bool) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "run <model.map>",
		Short: "Run a steppable map until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0], model.WithLogger(newLogger(*verbose)))
			if err != nil {
				return err
			}
			p, err := m.Predictor()
			if err != nil {
				return err
			}
			input, err := readInput(inputPath, p.InShape().Size())
			if err != nil {
				return err
			}
			err = m.Run(cmd.Context(),
				func() []float32 { return input },
				func(out []float32) {
					if !*quiet {
						fmt.Fprintf(cmd.OutOrStdout(), "argmax=%d\n", argmax(out))
					}
				})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Whitespace-separated input values (default: zeros)")
	return cmd
}

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <model.map>",
		Short: "Describe a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0])
			if err != nil {
				return err
			}
			p, err := m.Predictor()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "id\t%s\n", m.ID())
			fmt.Fprintf(w, "created\t%s\n", m.Created().Format(time.RFC3339))
			fmt.Fprintf(w, "input\t%s\n", m.InShape())
			fmt.Fprintf(w, "output\t%s\n", p.OutShape())
			fmt.Fprintf(w, "params\t%d\n", p.Params())
			if m.StepInterval() > 0 {
				fmt.Fprintf(w, "step interval\t%s\n", m.StepInterval())
				fmt.Fprintf(w, "lag threshold\t%s\n", m.LagThreshold())
			}
			for i, l := range p.Layers() {
				fmt.Fprintf(w, "layer %d\t%s\t%s -> %s\t%d params\n",
					i, l.Name(), l.InShape(), l.OutShape(), l.Params())
			}
			return w.Flush()
		},
	}
	return cmd
}

// readInput loads whitespace-separated float values, or zeros when path is
// empty.
func readInput(path string, size int) ([]float32, error) {
	if path == "" {
		return make([]float32, size), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != size {
		return nil, fmt.Errorf("input %s holds %d values, model wants %d", path, len(fields), size)
	}
	out := make([]float32, size)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("input %s value %d: %v", path, i, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// stdLogger adapts the standard library logger to the structured Logger
// interfaces the library packages accept.
type stdLogger struct {
	verbose bool
}

func newLogger(verbose bool) stdLogger {
	return stdLogger{verbose: verbose}
}

func (l stdLogger) Debug(msg string, kv ...any) {
	if l.verbose {
		log.Print(format("DEBUG", msg, kv))
	}
}

func (l stdLogger) Info(msg string, kv ...any) {
	if l.verbose {
		log.Print(format("INFO", msg, kv))
	}
}

func (l stdLogger) Warn(msg string, kv ...any) {
	log.Print(format("WARN", msg, kv))
}

func (l stdLogger) Error(msg string, kv ...any) {
	log.Print(format("ERROR", msg, kv))
}

func format(level, msg string, kv []any) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
