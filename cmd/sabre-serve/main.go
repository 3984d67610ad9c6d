package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/cmd"
	"github.com/wavesabre/sabre/convert"
	"github.com/wavesabre/sabre/rpc"
	"github.com/wavesabre/sabre/version"
)

// maxSongSize limits the size of an uploaded song.
const maxSongSize = 64 << 20

type server struct {
	opts   convert.Options
	logger *log.Logger
}

func newRouter(opts convert.Options, logger *log.Logger) *mux.Router {
	s := &server{opts: opts, logger: logger}
	router := mux.NewRouter()
	router.HandleFunc("/convert", s.handleConvert).Methods("POST", "OPTIONS")
	router.HandleFunc("/", handleRoot).Methods("GET")
	return router
}

func statusOf(err error) int {
	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		return http.StatusBadRequest
	case ftag.NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// queryScale parses an optional scale exponent from the query.
func queryScale(r *http.Request, key string) (*int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %v: %v", key, err)
	}
	return &i, nil
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

	// Handle pre-flight OPTIONS request
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSongSize))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading song: %v", err), http.StatusBadRequest)
		return
	}
	song, err := cmd.UnmarshalSong(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := s.opts
	for key, dst := range map[string]**int{"ts": &opts.TimestampScaleLog2, "ds": &opts.NoteDurationScaleLog2} {
		v, err := queryScale(r, key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if v != nil {
			*dst = v
		}
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "bin"
	}
	opts.Source = format == "cpp" || format == "h"

	diag := &sabre.DiagnosticLog{Next: s.logger}
	res, err := convert.Convert(song, opts, diag)
	if err != nil {
		s.logger.Warn("conversion failed", "remote", r.RemoteAddr, "err", err)
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	for _, warning := range diag.Warnings() {
		w.Header().Add("X-Sabre-Warning", warning)
	}

	switch format {
	case "bin":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(res.Bytes())
	case "cpp", "h":
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, res.Sources["."+format])
	case "stats":
		sizes, err := res.Sizes(nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(sizes)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("WaveSabre song converter. POST a .json or .yml song to /convert."))
}

func main() {
	port := flag.String("port", "10000", "Port to listen on.")
	optionsPath := flag.String("c", "", "Read conversion options from this .yml file.")
	rpcPort := flag.String("rpc", "", "Also serve conversions to sabre-convert -remote on this port.")
	versionFlag := flag.Bool("v", false, "Print version.")
	logLevel := cmd.LogLevelFlag()
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	logger, err := cmd.NewLogger(os.Stderr, *logLevel, "sabre-serve")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -loglevel: %v\n", err)
		os.Exit(2)
	}
	var opts convert.Options
	if *optionsPath != "" {
		if opts, err = convert.LoadOptionsFile(*optionsPath); err != nil {
			logger.Fatal("could not load options", "err", err)
		}
	}
	if *rpcPort != "" {
		l, err := net.Listen("tcp", ":"+*rpcPort)
		if err != nil {
			logger.Fatal("could not listen for the converter service", "err", err)
		}
		go func() {
			if err := rpc.Serve(l, opts, logger.WithPrefix("rpc")); err != nil {
				logger.Error("converter service stopped", "err", err)
			}
		}()
		logger.Info("serving converter service", "port", *rpcPort)
	}
	http.Handle("/", newRouter(opts, logger))
	logger.Info("starting server", "port", *port)
	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
