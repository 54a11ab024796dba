package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"

	gojson "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/Noofbiz/vldata/annotations"
	"github.com/Noofbiz/vldata/datasets"
	"github.com/Noofbiz/vldata/features"
)

type lenResponse struct {
	Name string `json:"name"`
	Len  int    `json:"len"`
}

type sampleResponse struct {
	Index    int                 `json:"index"`
	ImageID  annotations.ImageID `json:"image_id"`
	Shape    []int               `json:"shape"`
	Features []float32           `json:"features,omitempty"`
	Caption  []int               `json:"caption"`
	Label    int                 `json:"label"`
}

type statsResponse struct {
	Name        string `json:"name"`
	Len         int    `json:"len"`
	Features    int    `json:"features"`
	InMemory    bool   `json:"in_memory"`
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func serveFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
}

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, _, err := parseConfig("serve", args, stderr, datasetFlags, serveFlags)
	if err != nil {
		return err
	}
	if cfg.PrintEffectiveConfig {
		return printConfig(stdout, cfg)
	}
	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	ds, _, err := openDataset(cfg, logger)
	if err != nil {
		return err
	}
	defer ds.Close()

	srv := &fasthttp.Server{
		Handler: newHandler(ds, logger),
		Name:    "vldata",
	}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("serving", "addr", cfg.Addr, "dataset", ds.Name(), "len", ds.Len())
	return srv.ListenAndServe(cfg.Addr)
}

// newHandler serves:
//
//	GET /len                                  {"name", "len"}
//	GET /sample?index=i[&features=true]       one sample; features data only on request
//	GET /stats                                feature store size and lazy cache counters
func newHandler(ds datasets.Dataset, logger *slog.Logger) fasthttp.RequestHandler {
	return func(c *fasthttp.RequestCtx) {
		if !c.IsGet() {
			writeJSON(c, fasthttp.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		switch string(c.Path()) {
		case "/len":
			writeJSON(c, fasthttp.StatusOK, lenResponse{Name: ds.Name(), Len: ds.Len()})
		case "/sample":
			serveSample(c, ds, logger)
		case "/stats":
			writeJSON(c, fasthttp.StatusOK, storeStats(ds))
		default:
			writeJSON(c, fasthttp.StatusNotFound, errorResponse{Error: "not found"})
		}
	}
}

func serveSample(c *fasthttp.RequestCtx, ds datasets.Dataset, logger *slog.Logger) {
	args := c.QueryArgs()
	index, err := args.GetUint("index")
	if err != nil {
		writeJSON(c, fasthttp.StatusBadRequest, errorResponse{Error: "index must be a non-negative integer"})
		return
	}
	s, err := ds.Example(index)
	switch {
	case errors.Is(err, datasets.ErrOutOfRange):
		writeJSON(c, fasthttp.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case err != nil:
		logger.Error("sample", "index", index, "err", err)
		writeJSON(c, fasthttp.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := sampleResponse{
		Index:   index,
		ImageID: s.ImageID,
		Shape:   s.Features.Shape,
		Caption: s.Caption,
		Label:   s.Label,
	}
	if args.GetBool("features") {
		resp.Features = s.Features.Data
	}
	writeJSON(c, fasthttp.StatusOK, resp)
}

func writeJSON(c *fasthttp.RequestCtx, status int, v any) {
	c.SetStatusCode(status)
	c.SetContentType("application/json")
	if err := gojson.NewEncoder(c).Encode(v); err != nil {
		c.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}

func storeStats(ds datasets.Dataset) statsResponse {
	resp := statsResponse{Name: ds.Name(), Len: ds.Len()}
	sb, ok := ds.(storeBacked)
	if !ok {
		return resp
	}
	store := sb.Store()
	resp.Features = store.Len()
	resp.InMemory = true
	if fs, ok := store.(*features.FileStore); ok {
		resp.InMemory = fs.InMemory()
		resp.CacheHits, resp.CacheMisses = fs.CacheStats()
	}
	return resp
}
