package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli"

	"github.com/mbspbs10pc/dcohort-app/claimsfile"
	"github.com/mbspbs10pc/dcohort-app/conf"
	"github.com/mbspbs10pc/dcohort-app/dcohort/claims"
	"github.com/mbspbs10pc/dcohort-app/dcohort/cohort"
	dcerrors "github.com/mbspbs10pc/dcohort-app/dcohort/errors"
	"github.com/mbspbs10pc/dcohort-app/dcohort/sequence"
	"github.com/mbspbs10pc/dcohort-app/log"
)

// App Name and usage. Edit them here to prevent breaking tests
const Name = "dcohort"
const Usage = "Diabetes cohort and sequence extraction from MBS-PBS 10% claims"

const (
	drugListFile      = "drugs_used_in_diabetes.csv"
	metforminListFile = "metformin_items.csv"
	pregnancyListFile = "pregnancy_items.csv"
	copaymentFile     = "co-payments_08-18.csv"
	broadCategoryFile = "btos4d.csv"
)

func main() {
	app := setUpApp()
	if err := app.Run(os.Args); err != nil {
		log.Pipeline.Fatal(err)
	}
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage

	var root, refDir, concessionalsFile, sourceFile, output string
	var targetYear, parallelism, minLength int

	app.Commands = []cli.Command{
		{
			Name:  "find-cohort",
			Usage: "Label the observed population into the diabetes cohorts",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "root",
					Usage:       "Dataset root folder (or s3:// uri) holding the yearly claims files",
					Destination: &root,
				},
				cli.StringFlag{
					Name:        "refdir",
					Usage:       "Directory holding the reference tables",
					Destination: &refDir,
				},
				cli.StringFlag{
					Name:        "concessionals",
					Usage:       "CSV of continuously+consistently concessional patient IDs",
					Destination: &concessionalsFile,
				},
				cli.IntFlag{
					Name:        "target-year",
					Usage:       "Diabetes drug starting year",
					Value:       2012,
					Destination: &targetYear,
				},
				cli.IntFlag{
					Name:        "parallelism",
					Usage:       "Number of scanner shards per claims file",
					Value:       4,
					Destination: &parallelism,
				},
				cli.BoolFlag{
					Name:  "filter-copayments",
					Usage: "Drop rows below the year's co-payment threshold",
				},
				cli.StringFlag{
					Name:        "output",
					Usage:       "Labeled cohort CSV destination",
					Destination: &output,
				},
			},
			Action: func(c *cli.Context) error {
				return findCohort(root, refDir, concessionalsFile, output,
					targetYear, parallelism, c.Bool("filter-copayments"))
			},
		},
		{
			Name:  "extract-sequences",
			Usage: "Extract per-patient service token sequences for a labeled cohort",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "root",
					Usage:       "Dataset root folder (or s3:// uri) holding the service claims files",
					Destination: &root,
				},
				cli.StringFlag{
					Name:        "refdir",
					Usage:       "Directory holding the reference tables",
					Destination: &refDir,
				},
				cli.StringFlag{
					Name:        "source",
					Usage:       "Labeled cohort CSV produced by find-cohort",
					Destination: &sourceFile,
				},
				cli.BoolFlag{
					Name:  "exclude-pregnancy",
					Usage: "Drop pregnancy-related service items",
				},
				cli.BoolFlag{
					Name:  "broad-tokens",
					Usage: "Emit broad-service-category tokens instead of raw item codes",
				},
				cli.IntFlag{
					Name:        "min-length",
					Usage:       "Minimum number of in-window events (strictly more required)",
					Value:       sequence.DefaultMinLength,
					Destination: &minLength,
				},
				cli.StringFlag{
					Name:        "output",
					Usage:       "Sequence feature table CSV destination",
					Destination: &output,
				},
			},
			Action: func(c *cli.Context) error {
				return extractSequences(root, refDir, sourceFile, output,
					minLength, c.Bool("exclude-pregnancy"), c.Bool("broad-tokens"))
			},
		},
	}
	return app
}

func newFileHandler(root string) claimsfile.FileHandler {
	return claimsfile.NewFileHandler(root,
		&claimsfile.LocalFileHandler{Logger: log.Pipeline},
		&claimsfile.S3FileHandler{
			Logger:        log.Pipeline,
			Endpoint:      conf.GetEnv("DCOHORT_S3_ENDPOINT"),
			AssumeRoleArn: conf.GetEnv("DCOHORT_S3_ASSUME_ROLE_ARN"),
		})
}

func findCohort(root, refDir, concessionalsFile, output string, targetYear, parallelism int, filterCopayments bool) error {
	if err := cohort.ValidateTargetYear(targetYear); err != nil {
		return err
	}

	drugCodes, err := claims.LoadItemCodes(filepath.Join(refDir, drugListFile))
	if err != nil {
		return err
	}
	metItems, err := claims.LoadItemCodes(filepath.Join(refDir, metforminListFile))
	if err != nil {
		return err
	}
	concessionals, err := claims.LoadConcessionals(concessionalsFile)
	if err != nil {
		return err
	}

	var copayments map[int]float64
	if filterCopayments {
		if copayments, err = claims.LoadCopayments(filepath.Join(refDir, copaymentFile)); err != nil {
			return err
		}
	}

	handler := newFileHandler(root)
	files, skipped, err := handler.LoadClaimsFiles(root)
	if err != nil {
		return &dcerrors.ConfigurationError{Err: err, Msg: "failed to list dataset root"}
	}
	log.Pipeline.Infof("dataset root %s: %d files recognized, %d skipped", root, len(files), skipped)

	pharmacy := pharmacyFilesUpTo(files, targetYear)
	if len(pharmacy) == 0 {
		return &dcerrors.ConfigurationError{
			Err: fmt.Errorf("no pharmacy claims files under %s", root),
			Msg: "empty dataset root",
		}
	}

	byYear := make(map[int]claims.ScanResult, len(pharmacy))
	claimantsByYear := make(map[int]map[string]struct{}, len(pharmacy))
	population := make(map[string]struct{})

	for _, meta := range pharmacy {
		table, err := loadPharmacyTable(handler, meta, drugCodes)
		if err != nil {
			return err
		}

		opts := claims.ScanOptions{Parallelism: parallelism}
		if filterCopayments {
			threshold, ok := copayments[meta.Year]
			if !ok {
				return &dcerrors.ConfigurationError{
					Err: fmt.Errorf("no co-payment threshold for year %d", meta.Year),
					Msg: "incomplete co-payment table",
				}
			}
			opts.Copayment = &threshold
		}

		scanned, err := claims.Scan(table, opts)
		if err != nil {
			return err
		}
		byYear[meta.Year] = scanned

		claimants, err := loadClaimants(handler, meta)
		if err != nil {
			return err
		}
		claimantsByYear[meta.Year] = claimants
		for pin := range claimants {
			population[pin] = struct{}{}
		}

		log.Pipeline.Infof("%s: %d diabetes claimants of %d claimants", meta.Name, len(scanned), len(claimants))
	}

	positives, err := cohort.FindPositives(byYear, concessionals, targetYear)
	if err != nil {
		return err
	}
	negatives := cohort.FindNegatives(claimantsByYear, byYear, concessionals)
	metOnly, metThenOther := cohort.SplitMetformin(byYear[targetYear], positives, metItems)

	members := cohort.Assemble(population, positives, metOnly, metThenOther, negatives)
	if err := cohort.SaveCSV(output, members); err != nil {
		return err
	}

	log.Pipeline.Infof("labeled cohort written to %s (%d patients)", output, len(members))
	return nil
}

func extractSequences(root, refDir, sourceFile, output string, minLength int, excludePregnancy, broadTokens bool) error {
	cohortIDs, err := cohort.LoadCohortIDs(sourceFile,
		cohort.LabelPositive, cohort.LabelNegative,
		cohort.LabelMetforminOnly, cohort.LabelMetforminThenOther)
	if err != nil {
		return err
	}

	categories, err := claims.LoadBroadCategories(filepath.Join(refDir, broadCategoryFile))
	if err != nil {
		return err
	}

	exclude := map[string]struct{}{}
	if excludePregnancy {
		if exclude, err = claims.LoadItemCodes(filepath.Join(refDir, pregnancyListFile)); err != nil {
			return err
		}
	}

	handler := newFileHandler(root)
	files, skipped, err := handler.LoadClaimsFiles(root)
	if err != nil {
		return &dcerrors.ConfigurationError{Err: err, Msg: "failed to list dataset root"}
	}
	log.Pipeline.Infof("dataset root %s: %d files recognized, %d skipped", root, len(files), skipped)

	lookup, err := loadLookup(handler, files)
	if err != nil {
		return err
	}

	var events []sequence.ServiceEvent
	for _, meta := range serviceFiles(files) {
		rc, err := handler.OpenFile(meta)
		if err != nil {
			return &dcerrors.ConfigurationError{Err: err, Msg: "cannot open service claims file"}
		}
		fileEvents, err := sequence.ReadServiceEvents(rc, meta.Name, cohortIDs, exclude, categories)
		rc.Close()
		if err != nil {
			return err
		}
		events = append(events, fileEvents...)
	}

	rows, err := sequence.Extract(events, lookup, sequence.Options{
		MinLength:   minLength,
		BroadTokens: broadTokens,
	})
	if err != nil {
		return err
	}

	if err := sequence.SaveCSV(output, rows); err != nil {
		return err
	}

	log.Pipeline.Infof("sequence table written to %s (%d patients)", output, len(rows))
	return nil
}

// pharmacyFilesUpTo returns the pharmacy claims files with year <=
// targetYear, sorted by year so scans run in chronological order.
func pharmacyFilesUpTo(files []*claimsfile.Metadata, targetYear int) []*claimsfile.Metadata {
	var out []*claimsfile.Metadata
	for _, meta := range files {
		if meta.Type == claimsfile.FileTypePharmacy && meta.Year <= targetYear {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func serviceFiles(files []*claimsfile.Metadata) []*claimsfile.Metadata {
	var out []*claimsfile.Metadata
	for _, meta := range files {
		if meta.Type == claimsfile.FileTypeService {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func loadPharmacyTable(handler claimsfile.FileHandler, meta *claimsfile.Metadata, drugCodes map[string]struct{}) (*claims.Table, error) {
	rc, err := handler.OpenFile(meta)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open claims file"}
	}
	defer rc.Close()

	return claims.ReadTable(rc, meta.Name, meta.Year, drugCodes)
}

func loadClaimants(handler claimsfile.FileHandler, meta *claimsfile.Metadata) (map[string]struct{}, error) {
	rc, err := handler.OpenFile(meta)
	if err != nil {
		return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open claims file"}
	}
	defer rc.Close()

	return claims.ReadClaimantIDs(rc, meta.Name)
}

func loadLookup(handler claimsfile.FileHandler, files []*claimsfile.Metadata) (map[string]sequence.PatientInfo, error) {
	for _, meta := range files {
		if meta.Type != claimsfile.FileTypePinLookup {
			continue
		}
		rc, err := handler.OpenFile(meta)
		if err != nil {
			return nil, &dcerrors.ConfigurationError{Err: err, Msg: "cannot open patient lookup"}
		}
		defer rc.Close()

		return sequence.ReadPatientLookup(rc, meta.Name)
	}

	return nil, &dcerrors.ConfigurationError{
		Err: fmt.Errorf("no SAMPLE_PIN_LOOKUP.csv in dataset root"),
		Msg: "missing patient lookup",
	}
}
