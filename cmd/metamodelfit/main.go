// Command metamodelfit is a thin CLI façade over the fitting engine: it
// loads a stratum group's result sets from a CSV fixture, fits a set of
// candidate growth forms against one output type, prints the comparison
// table plus a prediction grid, and optionally saves the winner as a
// snapshot that the predict/show subcommands can reload. All fitting
// logic lives in internal/metamodel; this package only wires flags to
// calls.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"metamodelfit/internal/fixture"
	"metamodelfit/internal/growth"
	"metamodelfit/internal/metamodel"
	"metamodelfit/internal/persist"
	"metamodelfit/internal/sampler"
)

var defaultCandidates = []growth.Form{
	growth.ChapmanRichards,
	growth.ChapmanRichardsWithRandomEffect,
	growth.ChapmanRichardsDerivative,
	growth.ChapmanRichardsDerivativeWithRandomEffect,
	growth.Exponential,
	growth.ExponentialWithRandomEffect,
	growth.ModifiedChapmanRichardsDerivative,
	growth.ModifiedChapmanRichardsDerivativeWithRandomEffect,
}

type fitParams struct {
	resultSetFile string
	outputType    string
	stratumGroup  string
	seed          int64
	verbose       bool
	predictFrom   float64
	predictTo     float64
	predictStep   float64
	forms         []string
	savePath      string
	saveLight     bool
}

type predictParams struct {
	snapshotPath string
	ages         []float64
	variance     string
	nbSubjects   int
	nbReals      int
	seed         int64
}

func main() {
	root := &cobra.Command{
		Use:   "metamodelfit",
		Short: "Fit and rank growth meta-models over forest-stand result sets",
	}
	root.AddCommand(newFitCmd(), newPredictCmd(), newShowCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFitCmd() *cobra.Command {
	fp := &fitParams{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit every candidate growth form against one output type and report the winner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(fp)
		},
	}

	pf := cmd.Flags()
	pf.StringVarP(&fp.resultSetFile, "input", "i", "", "CSV file of result-set rows (required)")
	pf.StringVarP(&fp.outputType, "output-type", "o", "", "output type to fit, e.g. AliveVolume_AllSpecies (required)")
	pf.StringVarP(&fp.stratumGroup, "stratum-group", "g", "default", "stratum-group key for this meta-model")
	pf.Int64VarP(&fp.seed, "seed", "s", 1, "MCMC random seed")
	pf.BoolVarP(&fp.verbose, "verbose", "v", false, "debug-level sampler logging")
	pf.Float64Var(&fp.predictFrom, "predict-from", 0, "first age in the prediction grid")
	pf.Float64Var(&fp.predictTo, "predict-to", 100, "last age in the prediction grid")
	pf.Float64Var(&fp.predictStep, "predict-step", 10, "age step in the prediction grid")
	pf.StringSliceVar(&fp.forms, "forms", nil, "candidate model forms to try (default: all eight)")
	pf.StringVar(&fp.savePath, "save", "", "write the winning model to this snapshot file")
	pf.BoolVar(&fp.saveLight, "light", false, "save the light form (drop the MCMC sample)")

	mustMarkRequired(cmd, "input", "output-type")
	return cmd
}

func runFit(fp *fitParams) error {
	level := zerolog.InfoLevel
	if fp.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	resultSets, err := fixture.LoadResultSetsCSV(fp.resultSetFile)
	if err != nil {
		return errors.Wrap(err, "load result sets")
	}

	mm := metamodel.New(fp.stratumGroup, fp.seed, log)
	for _, rs := range resultSets {
		if err := mm.AddResultSet(rs); err != nil {
			return errors.Wrap(err, "add result set")
		}
	}

	forms := defaultCandidates
	if len(fp.forms) > 0 {
		forms = make([]growth.Form, 0, len(fp.forms))
		for _, name := range fp.forms {
			forms = append(forms, growth.Form(strings.TrimSpace(name)))
		}
	}
	candidates := make([]metamodel.Candidate, 0, len(forms))
	for _, form := range forms {
		candidates = append(candidates, metamodel.Candidate{Form: form})
	}

	status := mm.Fit(fp.outputType, candidates, sampler.DefaultConfig())
	fmt.Println(mm.Report())
	if status != "DONE" {
		return errors.New(status)
	}

	fmt.Printf("\n=== Predictions (%s) ===\n", fp.outputType)
	var ages []float64
	for age := fp.predictFrom; age <= fp.predictTo; age += fp.predictStep {
		ages = append(ages, age)
	}
	rows, err := mm.Predictions(fp.outputType, ages, 0, metamodel.VarianceParamEst)
	if err != nil {
		return errors.Wrap(err, "predictions")
	}
	for _, row := range rows {
		fmt.Printf("age=%-8.1f mean=%-12.4f variance=%-12.4f\n", row.AgeYr, row.Pred, *row.Variance)
	}

	if fp.savePath != "" {
		winner, _ := mm.Winner(fp.outputType)
		meta, err := persist.Stamp(mm, fp.outputType, time.Now())
		if err != nil {
			return errors.Wrap(err, "stamp metadata")
		}
		meta.Growth.DataSource = fp.resultSetFile
		snap, err := persist.Capture(winner, meta)
		if err != nil {
			return errors.Wrap(err, "capture snapshot")
		}
		if fp.saveLight {
			snap = snap.ToLight()
		}
		if err := persist.Save(fp.savePath, snap); err != nil {
			return err
		}
		log.Info().Str("path", fp.savePath).Bool("light", fp.saveLight).Msg("snapshot saved")
	}

	return nil
}

func newPredictCmd() *cobra.Command {
	pp := &predictParams{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Serve predictions from a saved snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(pp)
		},
	}

	pf := cmd.Flags()
	pf.StringVarP(&pp.snapshotPath, "model", "m", "", "snapshot file written by fit --save (required)")
	pf.Float64SliceVar(&pp.ages, "ages", []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, "ages to predict at")
	pf.StringVar(&pp.variance, "variance", "none", "variance column: none, paramest, or paramestre")
	pf.IntVar(&pp.nbSubjects, "subjects", 0, "Monte Carlo subjects (the Monte Carlo table is skipped when both subjects and realizations are 0)")
	pf.IntVar(&pp.nbReals, "realizations", 0, "Monte Carlo realizations (the Monte Carlo table is skipped when both subjects and realizations are 0)")
	pf.Int64VarP(&pp.seed, "seed", "s", 1, "Monte Carlo random seed")

	mustMarkRequired(cmd, "model")
	return cmd
}

func runPredict(pp *predictParams) error {
	snap, err := persist.Load(pp.snapshotPath)
	if err != nil {
		return err
	}
	m, err := snap.Restore()
	if err != nil {
		return err
	}

	var varianceOutput metamodel.VarianceOutput
	switch strings.ToLower(pp.variance) {
	case "none":
		varianceOutput = metamodel.VarianceNone
	case "paramest":
		varianceOutput = metamodel.VarianceParamEst
	case "paramestre":
		varianceOutput = metamodel.VarianceParamEstRE
	default:
		return errors.Errorf("unknown variance output %q", pp.variance)
	}

	rows, err := m.Predictions(pp.ages, 0, varianceOutput)
	if err != nil {
		return errors.Wrap(err, "predictions")
	}
	for _, row := range rows {
		if row.Variance != nil {
			fmt.Printf("age=%-8.1f pred=%-14.6f variance=%-14.6f\n", row.AgeYr, row.Pred, *row.Variance)
		} else {
			fmt.Printf("age=%-8.1f pred=%-14.6f\n", row.AgeYr, row.Pred)
		}
	}

	if pp.nbSubjects > 0 || pp.nbReals > 0 {
		rng := rand.New(rand.NewSource(pp.seed))
		mcRows, err := m.MonteCarloPredictions(pp.ages, 0, pp.nbSubjects, pp.nbReals, rng)
		if err != nil {
			return errors.Wrap(err, "monte carlo predictions")
		}
		fmt.Println("\nRealizationID,SubjectID,AgeYr,Pred")
		for _, row := range mcRows {
			fmt.Printf("%d,%d,%.1f,%.6f\n", row.RealizationID, row.SubjectID, row.AgeYr, row.Pred)
		}
	}

	return nil
}

func newShowCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a saved snapshot's metadata and parameter summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := persist.Load(path)
			if err != nil {
				return err
			}
			fmt.Print(snap.Summary())
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "model", "m", "", "snapshot file written by fit --save (required)")
	mustMarkRequired(cmd, "model")
	return cmd
}

func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
