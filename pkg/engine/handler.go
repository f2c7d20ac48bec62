package engine

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/decoy/pkg/expect"
	"github.com/getmockd/decoy/pkg/wsreact"
)

// maxRequestBody caps inbound bodies at 10 MiB; larger requests get 413.
const maxRequestBody = 10 << 20

// forwardClient relays forwarded requests. Redirects are not followed so
// the upstream's redirect responses are mirrored verbatim.
var forwardClient = &http.Client{
	Timeout: 30 * time.Second,
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Handler returns the http.Handler that adapts the wire protocol to the
// core: it normalizes requests into views, runs the match engine, and
// executes response descriptions. WebSocket upgrades hand the connection
// to the reaction engine.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if wsreact.IsWebSocketRequest(r) {
		err := s.ws.HandleUpgrade(w, r)
		if errors.Is(err, wsreact.ErrNoEndpoint) {
			http.Error(w, "no websocket expectation for "+r.URL.Path, http.StatusNotFound)
		}
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	view := expect.NewRequestView(r, body)
	outcome := Match(view, s.store, s.decoders)

	// A HEAD with no expectation of its own falls back to GET matching,
	// mirroring how real servers derive HEAD from GET.
	if !outcome.Matched() && r.Method == http.MethodHead {
		getView := expect.NewRequestView(r, body)
		getView.Method = http.MethodGet
		if retry := Match(getView, s.store, s.decoders); retry.Matched() {
			view = getView
			outcome = retry
		}
	}

	if !outcome.Matched() {
		s.writeNoMatch(w, outcome.Report)
		return
	}

	desc, err := Synthesize(outcome.Expectation, outcome.CallIndex, view, s.encoders)
	if err != nil {
		s.log.Error("response synthesis failed",
			"expectation", outcome.Expectation.ID(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Debug("request matched",
		"method", view.Method, "path", view.Path,
		"expectation", outcome.Expectation.ID(), "call", outcome.CallIndex)

	headOnly := r.Method == http.MethodHead
	s.execute(w, desc, headOnly)
}

// execute writes a response description to the wire.
func (s *Server) execute(w http.ResponseWriter, desc *ResponseDescription, headOnly bool) {
	if desc.Forward != nil {
		s.executeForward(w, desc)
		return
	}

	body := desc.Body
	if desc.Compress == "gzip" && len(body) > 0 {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err == nil && zw.Close() == nil {
			body = buf.Bytes()
			desc.Headers.Set("Content-Encoding", "gzip")
		}
	}

	for name, values := range desc.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	if desc.Stream != nil {
		s.executeStream(w, desc, headOnly)
		return
	}

	if desc.Delay > 0 {
		time.Sleep(desc.Delay)
	}

	if !headOnly {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(desc.Status)
	if headOnly {
		return
	}
	_, _ = w.Write(body)
}

// executeStream writes the chunk plan with its per-chunk delays,
// flushing between writes so the client observes real chunk boundaries.
func (s *Server) executeStream(w http.ResponseWriter, desc *ResponseDescription, headOnly bool) {
	w.WriteHeader(desc.Status)
	if headOnly {
		return
	}

	flusher, _ := w.(http.Flusher)
	for i, chunk := range desc.Stream.Chunks {
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if d := desc.Stream.Delays[i]; d > 0 {
			time.Sleep(d)
		}
	}
}

// executeForward relays the original request to the upstream and mirrors
// its response.
func (s *Server) executeForward(w http.ResponseWriter, desc *ResponseDescription) {
	fd := desc.Forward

	target := *fd.Target
	target.Path = strings.TrimSuffix(target.Path, "/") + fd.Path
	target.RawQuery = fd.RawQuery

	req, err := http.NewRequest(fd.Method, target.String(), bytes.NewReader(fd.Body))
	if err != nil {
		http.Error(w, "forward failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	for name, values := range fd.Headers {
		if isHopByHop(name) {
			continue
		}
		req.Header[name] = values
	}

	resp, err := forwardClient.Do(req)
	if err != nil {
		s.log.Error("forward failed", "target", target.String(), "error", err)
		http.Error(w, "forward failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		w.Header()[name] = values
	}
	// Responder-declared headers win over the upstream's.
	for name, values := range desc.Headers {
		w.Header()[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// writeNoMatch serves the structured mismatch report on the configured
// no-match status.
func (s *Server) writeNoMatch(w http.ResponseWriter, report *Report) {
	s.setLastReport(report)
	s.log.Info("request matched no expectation",
		"method", report.Method, "path", report.Path,
		"expectations", len(report.Entries))

	payload, err := json.Marshal(report)
	if err != nil {
		http.Error(w, "no expectation matched", s.cfg.NoMatchStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Decoy-Mismatches", strconv.Itoa(report.TotalFailed))
	w.WriteHeader(s.cfg.NoMatchStatus)
	_, _ = w.Write(payload)
}

func isHopByHop(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade":
		return true
	}
	return false
}
