package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fiberorient/internal/models"
	"fiberorient/pkg/artifact"
	"fiberorient/pkg/ipoints"
	"fiberorient/pkg/pipeline"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map orientation angles onto FE integration points",
	Long: `Samples the corrected theta and phi fields of an orientation artifact at the
integration points of a solver table and writes them as CSV, or as Fortran
DATA includes (<sample>_THETA.f, <sample>_PHI.f) for user subroutines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		artPath, _ := cmd.Flags().GetString("artifact")
		pointsPath, _ := cmd.Flags().GetString("points")
		outPath, _ := cmd.Flags().GetString("out")
		fortran, _ := cmd.Flags().GetBool("fortran")
		radians, _ := cmd.Flags().GetBool("radians")
		if artPath == "" || pointsPath == "" {
			return fmt.Errorf("must supply an artifact (--artifact) and a point table (--points)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var w io.Writer = io.Discard
		if cfg.Output.Verbose {
			w = os.Stdout
		}

		art, err := artifact.Load(artPath)
		if err != nil {
			return fmt.Errorf("failed to load artifact: %w", err)
		}
		points, err := ipoints.LoadTable(pointsPath)
		if err != nil {
			return fmt.Errorf("failed to load integration points: %w", err)
		}
		fmt.Fprintf(w, "Mapping %d integration points onto field %v\n", len(points), art.Phi.Shape())

		rows, rep, err := pipeline.MapQueryPoints(art, points, cfg.Model.PhysicalUnit)
		if errors.Is(err, models.ErrAllOutOfBounds) {
			return fmt.Errorf("no integration point lies inside the orientation field, check the point unit (model.physicalUnit): %w", err)
		}
		if err != nil {
			return err
		}
		if rep.Missing > 0 {
			log.Printf("Warning: %d of %d integration points lie outside the field and get zero angles",
				rep.Missing, rep.Total)
		}
		undefined := 0
		for _, r := range rows {
			if math.IsNaN(r.Phi) {
				undefined++
			}
		}
		if undefined -= rep.Missing; undefined > 0 {
			log.Printf("Warning: %d integration points sit on voxels without a fiber direction and get zero angles", undefined)
		}

		if fortran {
			dir := outPath
			if dir == "" {
				dir = "."
			}
			for _, a := range []ipoints.Angle{ipoints.Phi, ipoints.Theta} {
				name := filepath.Join(dir, fmt.Sprintf("%s_%s.f", art.Sample, a))
				if err := writeFile(name, func(f io.Writer) error {
					return ipoints.WriteFortranData(f, rows, a)
				}); err != nil {
					return err
				}
				fmt.Fprintf(w, "Saved %s\n", name)
			}
			return nil
		}

		if outPath == "" || outPath == "-" {
			return ipoints.WriteCSV(os.Stdout, rows, radians)
		}
		if err := writeFile(outPath, func(f io.Writer) error {
			return ipoints.WriteCSV(f, rows, radians)
		}); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved %s\n", outPath)
		return nil
	},
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().StringP("artifact", "a", "", "orientation artifact (.fori)")
	mapCmd.Flags().StringP("points", "p", "", "integration point table (element ip x y z)")
	mapCmd.Flags().StringP("out", "o", "", "output CSV file, or directory with --fortran (default stdout / .)")
	mapCmd.Flags().Bool("fortran", false, "write Fortran DATA includes instead of CSV")
	mapCmd.Flags().Bool("radians", false, "write CSV angles in radians")
}
