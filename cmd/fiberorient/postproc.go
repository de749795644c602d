package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"fiberorient/internal/models"
	"fiberorient/pkg/artifact"
	"fiberorient/pkg/ipoints"
	"fiberorient/pkg/postproc"
	"fiberorient/pkg/sampling"
	"fiberorient/pkg/volume"
)

var postprocCmd = &cobra.Command{
	Use:   "postproc",
	Short: "Evaluate FE results",
}

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Stress-strain curve and elastic modulus from a load-displacement history",
	RunE: func(cmd *cobra.Command, args []string) error {
		dimsPath, _ := cmd.Flags().GetString("dims")
		ldPath, _ := cmd.Flags().GetString("load-disp")
		lo, _ := cmd.Flags().GetFloat64("strain-min")
		hi, _ := cmd.Flags().GetFloat64("strain-max")
		scale, _ := cmd.Flags().GetFloat64("unit-scale")
		outPath, _ := cmd.Flags().GetString("out")
		if dimsPath == "" || ldPath == "" {
			return fmt.Errorf("must supply model dimensions (--dims) and a load-displacement file (--load-disp)")
		}

		dims, err := artifact.LoadDims(dimsPath)
		if err != nil {
			return fmt.Errorf("failed to load model dimensions: %w", err)
		}
		curve, err := postproc.LoadLoadDisplacement(ldPath)
		if err != nil {
			return fmt.Errorf("failed to load load-displacement data: %w", err)
		}
		ss, err := postproc.StressStrain(curve, dims, scale)
		if err != nil {
			return err
		}
		m, err := postproc.FitModulus(ss, lo, hi)
		if err != nil {
			return err
		}

		fmt.Printf("E-modulus: %.2f GPa (%d samples between %g%% and %g%% strain)\n", m.E, m.Points, lo, hi)
		fmt.Printf("Peak stress: %.2f MPa at %.4f%% strain\n", m.PeakStress, m.StrainAtPeak)

		if outPath == "" {
			return nil
		}
		return writeFile(outPath, func(w io.Writer) error {
			cw := csv.NewWriter(w)
			cw.Write([]string{"strain", "stress"})
			for i := range ss.Strain {
				cw.Write([]string{
					strconv.FormatFloat(ss.Strain[i], 'g', -1, 64),
					strconv.FormatFloat(ss.Stress[i], 'g', -1, 64),
				})
			}
			cw.Flush()
			return cw.Error()
		})
	},
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Resample mapped integration point angles back onto the voxel grid",
	Long: `Rebuilds a voxel field from the angles mapped onto integration points by
nearest point lookup, writes it as NIfTI and reports its correlation with the
original field of the artifact.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		artPath, _ := cmd.Flags().GetString("artifact")
		pointsPath, _ := cmd.Flags().GetString("points")
		mappedPath, _ := cmd.Flags().GetString("mapped")
		angle, _ := cmd.Flags().GetString("angle")
		maxDist, _ := cmd.Flags().GetFloat64("max-dist")
		outPath, _ := cmd.Flags().GetString("out")
		if artPath == "" || pointsPath == "" || mappedPath == "" {
			return fmt.Errorf("must supply --artifact, --points and --mapped")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		art, err := artifact.Load(artPath)
		if err != nil {
			return err
		}
		points, err := ipoints.LoadTable(pointsPath)
		if err != nil {
			return err
		}
		rows, err := readMapped(mappedPath)
		if err != nil {
			return err
		}

		field := art.Phi
		if angle == "theta" {
			field = art.Theta
		}
		coords, values, err := joinMapped(points, rows, angle == "theta")
		if err != nil {
			return err
		}

		g, err := postproc.NewPointGrid(coords, values)
		if err != nil {
			return err
		}
		tr, err := sampling.MaterialTransform(field.Shape(), art.VoxelSize, cfg.Model.PhysicalUnit)
		if err != nil {
			return err
		}
		grid := g.ResampleField(field.Shape(), func(x, y, z int) [3]float64 {
			return tr.Locate([3]float64{float64(x), float64(y), float64(z)})
		}, maxDist)

		fmt.Printf("Correlation with artifact %s: %.4f\n", angle, postproc.Correlation(field.Float64s(), grid.Float64s()))

		if outPath == "" {
			return nil
		}
		vol := models.NewVolume(grid.Nx, grid.Ny, grid.Nz, art.VoxelSize)
		copy(vol.Data, grid.Float64s())
		return writeFile(outPath, func(w io.Writer) error {
			return volume.WriteNifti(w, vol)
		})
	},
}

func readMapped(path string) ([]ipoints.Sampled, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ipoints.ReadCSV(f)
}

// joinMapped pairs point coordinates with mapped angles by (element, ip).
func joinMapped(points []ipoints.Point, rows []ipoints.Sampled, theta bool) ([][3]float64, []float64, error) {
	type key struct{ e, ip int }
	byKey := make(map[key]ipoints.Sampled, len(rows))
	for _, r := range rows {
		byKey[key{r.Element, r.IP}] = r
	}
	coords := make([][3]float64, 0, len(points))
	values := make([]float64, 0, len(points))
	for _, p := range points {
		r, ok := byKey[key{p.Element, p.IP}]
		if !ok {
			continue
		}
		coords = append(coords, p.Coords())
		if theta {
			values = append(values, r.Theta)
		} else {
			values = append(values, r.Phi)
		}
	}
	if len(coords) == 0 {
		return nil, nil, fmt.Errorf("no mapped angle matches an integration point")
	}
	return coords, values, nil
}

func init() {
	rootCmd.AddCommand(postprocCmd)
	postprocCmd.AddCommand(curveCmd, gridCmd)

	curveCmd.Flags().StringP("dims", "d", "", "model dimension file (<sample>_TomoDim.txt)")
	curveCmd.Flags().StringP("load-disp", "l", "", "load-displacement history")
	curveCmd.Flags().Float64("strain-min", 0.05, "lower bound of the fitting window in % strain")
	curveCmd.Flags().Float64("strain-max", 0.25, "upper bound of the fitting window in % strain")
	curveCmd.Flags().Float64("unit-scale", 1e-3, "factor converting model dimensions into the displacement unit")
	curveCmd.Flags().StringP("out", "o", "", "stress-strain CSV output")

	gridCmd.Flags().StringP("artifact", "a", "", "orientation artifact (.fori)")
	gridCmd.Flags().StringP("points", "p", "", "integration point table")
	gridCmd.Flags().StringP("mapped", "m", "", "mapped angles CSV written by map")
	gridCmd.Flags().String("angle", "phi", "angle to resample: phi or theta")
	gridCmd.Flags().Float64("max-dist", 0, "leave voxels farther than this from every point empty (point unit)")
	gridCmd.Flags().StringP("out", "o", "", "NIfTI output")
}
