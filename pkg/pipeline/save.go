package pipeline

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"fiberorient/pkg/artifact"
	"fiberorient/pkg/orientation"
)

// ArtifactPath returns the orientation artifact file of sample inside dir.
func ArtifactPath(dir, sample string) string {
	return filepath.Join(dir, sample+"_MAP_VAR.fori")
}

// DimsPath returns the model dimension file of sample inside dir.
func DimsPath(dir, sample string) string {
	return filepath.Join(dir, sample+"_TomoDim.txt")
}

// SaveResult writes the orientation artifact, the model dimensions and the
// misalignment histogram into dir. Intermediary images are written when
// enabled and a renderer is set; failures there are only reported.
func (p *Pipeline) SaveResult(res *Result, dir string) error {
	w := p.out()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	sample := p.params.Sample

	path := ArtifactPath(dir, sample)
	if err := res.Artifact.Save(path); err != nil {
		return fmt.Errorf("failed to save orientation artifact: %w", err)
	}
	fmt.Fprintf(w, "Saved %s\n", path)

	path = DimsPath(dir, sample)
	if err := artifact.SaveDims(path, res.Artifact.ModelDim); err != nil {
		return fmt.Errorf("failed to save model dimensions: %w", err)
	}
	fmt.Fprintf(w, "Saved %s\n", path)

	path = filepath.Join(dir, sample+"_Misalignment_hist.csv")
	if err := saveHistogram(path, res.PhiBefore, res.PhiAfter); err != nil {
		log.Printf("Warning: Failed to save misalignment histogram: %v", err)
	}

	if p.params.SaveIntermediaryResults && p.renderer != nil {
		fmt.Fprintln(w, "Saving intermediary images...")
		if err := p.renderer.RenderIntensity(sample, res.Intensity); err != nil {
			log.Printf("Warning: Failed to save intensity slices: %v", err)
		}
		if err := p.renderer.RenderMisalignment(sample, res.Intensity, res.Artifact.Phi, p.params.SliceOfInterest); err != nil {
			log.Printf("Warning: Failed to save misalignment overlay: %v", err)
		}
	}
	return nil
}

// saveHistogram writes one row per bin: lower edge, upper edge and the
// densities before and after correction.
func saveHistogram(path string, before, after orientation.Summary) error {
	if len(before.Dividers) == 0 || len(before.Dividers) != len(after.Dividers) {
		return fmt.Errorf("no histogram to save")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	cw.Write([]string{"lower", "upper", "before", "after"})
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }
	for i := range before.Density {
		cw.Write([]string{
			ff(before.Dividers[i]), ff(before.Dividers[i+1]),
			ff(before.Density[i]), ff(after.Density[i]),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
