package glasscore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glass3/associator/cmn"
	"github.com/golang/glog"
)

// DumpGraphics writes a (lat, lon, stack) grid sample around h's current
// location to Config.GraphicsOutFolder, one file per call, stepping
// GraphicsSteps points of GraphicsStepKm apart along each horizontal axis
// at the current depth. Disabled unless Config.GraphicsOut is set; a
// write failure is logged and otherwise ignored since the dump is a
// debugging aid, never load-bearing for association or localization.
func DumpGraphics(h *Hypo, cfg *cmn.Config) {
	if !cfg.GraphicsOut {
		return
	}
	if err := os.MkdirAll(cfg.GraphicsOutFolder, 0o755); err != nil {
		glog.Warningf("graphics dump for hypo %s: mkdir %s: %v", h.ID, cfg.GraphicsOutFolder, err)
		return
	}

	center := h.Location()
	ot := h.OriginTime()
	half := cfg.GraphicsSteps / 2

	f, err := os.Create(filepath.Join(cfg.GraphicsOutFolder, h.ID+".grid"))
	if err != nil {
		glog.Warningf("graphics dump for hypo %s: create: %v", h.ID, err)
		return
	}
	defer f.Close()

	for i := -half; i <= half; i++ {
		for j := -half; j <= half; j++ {
			g := center.OffsetKm(float64(i)*cfg.GraphicsStepKm, float64(j)*cfg.GraphicsStepKm, 0)
			stack := h.CalculateBayes(g.LatDeg, g.LonDeg, g.DepthK, ot, false)
			fmt.Fprintf(f, "%f %f %f\n", g.LatDeg, g.LonDeg, stack)
		}
	}
}
