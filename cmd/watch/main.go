package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jengzang/locator-backend-go/internal/client"
	"github.com/jengzang/locator-backend-go/internal/models"
	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/internal/reconciler"
	"github.com/jengzang/locator-backend-go/internal/store"
)

type options struct {
	server   string
	timeout  time.Duration
	logLevel string

	redisAddr string
	redisDB   int
	session   string

	metricsAddr string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "watch",
		Short:        "Terminal map client for the Localizador API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "Localizador API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP request timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newLiveCmd(opts, out), newHistoryCmd(opts, out), newNearCmd(opts, out))
	return root
}

func newLiveCmd(opts *options, out io.Writer) *cobra.Command {
	var (
		interval time.Duration
		follow   string
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Poll the latest fixes and follow the units",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := reconciler.ParseMode(follow)
			if err != nil {
				return err
			}
			logger := observability.NewLoggerTo(os.Stderr, opts.logLevel)
			api := client.New(opts.server, opts.timeout)

			rec := reconciler.New()
			sessions, closeStore, err := openSessionStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeStore()
			if sessions != nil {
				if ok, err := rec.Load(cmd.Context(), sessions); err != nil {
					logger.Warn("could not restore sessions", "error", err)
				} else if ok {
					logger.Info("sessions restored", "units", len(rec.Sessions()))
				}
			}
			rec.SetMode(mode)

			if opts.metricsAddr != "" {
				go serveMetrics(opts.metricsAddr, logger)
			}

			w := &liveWatcher{api: api, rec: rec, sessions: sessions, logger: logger, out: out}
			return w.run(cmd.Context(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "poll period")
	cmd.Flags().StringVar(&follow, "follow", "1", "unit id to follow, or all to fit every unit")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "redis address for session persistence (host:port)")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "redis database")
	cmd.Flags().StringVar(&opts.session, "session", "default", "session name in redis")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics", "", "serve prometheus metrics on this address")
	return cmd
}

type liveWatcher struct {
	api      *client.Client
	rec      *reconciler.Reconciler
	sessions reconciler.SessionStore
	logger   *slog.Logger
	out      io.Writer
	titled   bool
}

func (w *liveWatcher) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.save()
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *liveWatcher) poll(ctx context.Context) {
	latest, err := w.api.Latest(ctx, "")
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// a failed poll leaves routes and markers untouched
		w.logger.Error("Error cargando datos", "error", err)
		fmt.Fprintln(w.out, "Error: No se pudieron cargar los datos.")
		return
	}

	if !w.titled && latest.PageName != "" {
		fmt.Fprintf(w.out, "== %s ==\n", latest.PageName)
		w.titled = true
	}

	appended := w.rec.IngestLive(latest.UnitFixes())
	for _, st := range w.rec.Sessions() {
		printUnit(w.out, st, appended[st.Unit])
	}
	printViewport(w.out, w.rec.Mode(), w.rec.Viewport())
	w.save()
}

func (w *liveWatcher) save() {
	if w.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.rec.Save(ctx, w.sessions); err != nil {
		w.logger.Warn("could not save sessions", "error", err)
	}
}

func newHistoryCmd(opts *options, out io.Writer) *cobra.Command {
	var from, to, unit string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Draw the route of a unit within a time window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == "" && to == "" {
				from, to = client.DefaultWindow(time.Now())
			}
			fmt.Fprintf(out, "Consultando datos desde %s hasta %s...\n", from, to)

			api := client.New(opts.server, opts.timeout)
			resp, err := api.Range(cmd.Context(), from, to, unit)
			if err != nil {
				return err
			}

			rec := reconciler.New()
			h, err := rec.ReplaceHistory(unit, resp.Locations)
			if errors.Is(err, reconciler.ErrNoData) {
				fmt.Fprintln(out, "No se encontraron datos para el período seleccionado.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Recorrido histórico: %d puntos | Inicio: %s | Fin: %s | Distancia: %.2f km\n",
				h.Points(), h.Start.Timestamp, h.End.Timestamp, h.Length/1000)
			fmt.Fprintf(out, "Consulta: %s .. %s\n", resp.ConsultaDesde, resp.ConsultaHasta)
			printViewport(out, reconciler.FitAll, rec.Viewport())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start, YYYY-MM-DDTHH:MM (default: 24 hours ago)")
	cmd.Flags().StringVar(&to, "to", "", "end, YYYY-MM-DDTHH:MM (default: now)")
	cmd.Flags().StringVar(&unit, "unit", "", "unit id (default: first configured unit)")
	return cmd
}

func newNearCmd(opts *options, out io.Writer) *cobra.Command {
	var (
		lat, lng float64
		radio    int
		unit     string
	)

	cmd := &cobra.Command{
		Use:   "near",
		Short: "List the fixes within a radius of a point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := client.New(opts.server, opts.timeout)
			resp, err := api.Radius(cmd.Context(), lat, lng, radio, unit)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%d ubicaciones a menos de %d m de (%.6f, %.6f)\n",
				resp.Total, resp.RadioMetros, resp.PuntoBusqueda.Lat, resp.PuntoBusqueda.Lng)
			for _, f := range resp.Locations {
				d := 0.0
				if f.Distance != nil {
					d = *f.Distance
				}
				fmt.Fprintf(out, "  %s  %.6f, %.6f  %8.2f m  RPM: %s\n", f.Timestamp, f.Lat, f.Lng, d, rpmText(f))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the search point")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the search point")
	cmd.Flags().IntVar(&radio, "radio", 0, "radius in meters (default: server default)")
	cmd.Flags().StringVar(&unit, "unit", "", "unit id (default: first configured unit)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

// openSessionStore returns a nil store when no redis address is configured
func openSessionStore(ctx context.Context, opts *options) (reconciler.SessionStore, func(), error) {
	if opts.redisAddr == "" {
		return nil, func() {}, nil
	}
	s, err := store.NewRedisStore(ctx, opts.redisAddr, opts.redisDB, opts.session, 24*time.Hour)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

func printUnit(out io.Writer, st reconciler.SessionState, appended int) {
	label := st.Unit
	if label == "" {
		label = "default"
	}
	if st.Marker == nil {
		fmt.Fprintf(out, "[Vehículo %s] sin datos\n", label)
		return
	}
	m := st.Marker
	line := "sin ruta"
	if len(st.Route) >= 2 {
		line = fmt.Sprintf("ruta %d puntos", len(st.Route))
	}
	fmt.Fprintf(out, "[Vehículo %s] %s | Lat: %.6f | Lon: %.6f | RPM: %s | %s (+%d)\n",
		label, m.Timestamp, m.Lat, m.Lng, rpmText(*m), line, appended)
}

func printViewport(out io.Writer, mode reconciler.Mode, v reconciler.Viewport) {
	var b strings.Builder
	fmt.Fprintf(&b, "Vista (%s): centro %.6f, %.6f zoom %d", mode, v.Center.Lat, v.Center.Lng, v.Zoom)
	if v.Bounds != nil {
		fmt.Fprintf(&b, " | límites [%.6f, %.6f] - [%.6f, %.6f] padding %d",
			v.Bounds.MinLat, v.Bounds.MinLon, v.Bounds.MaxLat, v.Bounds.MaxLon, v.Padding)
	}
	fmt.Fprintln(out, b.String())
}

func rpmText(f models.Fix) string {
	if f.RPM == nil {
		return "N/A"
	}
	return fmt.Sprint(*f.RPM)
}
