package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/threading"
	"github.com/tOgg1/margin/internal/windowing"
)

var (
	windowScroll        int
	windowViewport      int
	windowDefaultHeight int
	windowMarginAbove   int
	windowMarginBelow   int
	windowHeights       map[string]int
	windowTarget        string
	windowSort          string
)

func init() {
	rootCmd.AddCommand(windowCmd)
	flags := windowCmd.Flags()
	flags.IntVar(&windowScroll, "scroll", 0, "scroll position of the container")
	flags.IntVar(&windowViewport, "height", 0, "viewport height")
	flags.IntVar(&windowDefaultHeight, "default-height", windowing.DefaultThreadHeight, "height assumed for unmeasured threads")
	flags.IntVar(&windowMarginAbove, "margin-above", windowing.DefaultMarginAbove, "overscan above the viewport")
	flags.IntVar(&windowMarginBelow, "margin-below", windowing.DefaultMarginBelow, "overscan below the viewport")
	flags.StringToIntVar(&windowHeights, "measured", nil, "measured thread heights, e.g. a1=120,a2=340")
	flags.StringVar(&windowTarget, "target", "", "report the scroll offset of this thread")
	flags.StringVar(&windowSort, "sort", "", "thread order: location, newest, oldest (default from config)")
}

// WindowReport is the output of `margin window`.
type WindowReport struct {
	URI            string   `json:"uri"`
	ScrollTop      int      `json:"scroll_top"`
	Viewport       int      `json:"viewport"`
	Threads        int      `json:"threads"`
	First          int      `json:"first"`
	Last           int      `json:"last"`
	Visible        []string `json:"visible"`
	OffscreenUpper int      `json:"offscreen_upper_height"`
	OffscreenLower int      `json:"offscreen_lower_height"`
	TotalHeight    int      `json:"total_height"`
	Target         string   `json:"target,omitempty"`
	TargetOffset   *int     `json:"target_offset,omitempty"`
}

var windowCmd = &cobra.Command{
	Use:   "window [uri]",
	Short: "Compute the rendered thread window without a terminal",
	Long: `Compute which top-level threads the sidebar would render at a scroll
position, and the spacer heights standing in for the rest. Threads without a
--measured height use --default-height.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, err := resolveURI(args)
		if err != nil {
			return err
		}
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		annotations, err := b.service.Load(cmd.Context(), uri)
		if err != nil {
			return err
		}
		sortKey := GetConfig().Sidebar.SortBy
		if windowSort != "" {
			sortKey = windowSort
		}

		report, err := computeWindow(uri, annotations, threading.ParseSortKey(sortKey))
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), report)
		}
		return writeWindowReport(cmd.OutOrStdout(), report)
	},
}

func computeWindow(uri string, annotations []*models.Annotation, sortKey threading.SortKey) (*WindowReport, error) {
	if windowDefaultHeight <= 0 {
		return nil, &ExitError{Code: ExitUsage, Err: fmt.Errorf("--default-height must be positive")}
	}

	root := threading.Build(annotations, threading.Options{Sort: sortKey})
	threads := threading.TopLevel(root)

	heights := windowing.NewHeightCache(windowDefaultHeight)
	for id, h := range windowHeights {
		heights.Set(id, h)
	}

	window := windowing.Calculate(threads, heights, windowScroll, windowViewport, windowing.Options{
		MarginAbove: windowMarginAbove,
		MarginBelow: windowMarginBelow,
	})

	report := &WindowReport{
		URI:            uri,
		ScrollTop:      max(0, windowScroll),
		Viewport:       max(0, windowViewport),
		Threads:        len(threads),
		First:          window.First,
		Last:           window.Last,
		Visible:        make([]string, 0, len(window.Threads)),
		OffscreenUpper: window.OffscreenUpperHeight,
		OffscreenLower: window.OffscreenLowerHeight,
		TotalHeight:    window.TotalHeight,
	}
	for _, thread := range window.Threads {
		report.Visible = append(report.Visible, thread.ID)
	}

	if windowTarget != "" {
		offset, ok := windowing.OffsetOf(threads, heights, windowTarget)
		if !ok {
			return nil, &ExitError{Code: ExitNotFound, Err: fmt.Errorf("thread %s is not a top-level thread on %s", windowTarget, uri)}
		}
		report.Target = windowTarget
		report.TargetOffset = &offset
	}
	return report, nil
}

func writeWindowReport(out io.Writer, r *WindowReport) error {
	rows := [][]string{
		{"threads", fmt.Sprint(r.Threads)},
		{"scroll", fmt.Sprintf("%d (viewport %d)", r.ScrollTop, r.Viewport)},
		{"rendered", fmt.Sprintf("[%d, %d) %d threads", r.First, r.Last, len(r.Visible))},
		{"upper spacer", fmt.Sprint(r.OffscreenUpper)},
		{"lower spacer", fmt.Sprint(r.OffscreenLower)},
		{"total height", fmt.Sprint(r.TotalHeight)},
	}
	if r.TargetOffset != nil {
		rows = append(rows, []string{"offset of " + r.Target, fmt.Sprint(*r.TargetOffset)})
	}
	return writeTable(out, nil, rows)
}
