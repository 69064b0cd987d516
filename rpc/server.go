package rpc

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dripline/crypto"
	"dripline/native/dca"
)

// Server exposes the read-only query surface: user data, the asset
// allow-list, health, and metrics. All endpoints are side-effect free.
type Server struct {
	engine *dca.Engine
	log    *slog.Logger
}

// NewServer wraps the engine.
func NewServer(engine *dca.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, log: log}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/assets", s.handleAssets)
	r.Get("/v1/users/{address}", s.handleUser)
	return r
}

type legPayload struct {
	Asset          string `json:"asset"`
	WeightBps      uint32 `json:"weightBps"`
	MaxSlippageBps uint32 `json:"maxSlippageBps"`
	Route          string `json:"route"`
	Accumulated    string `json:"accumulated"`
}

type positionPayload struct {
	PrincipalAsset     string       `json:"principalAsset"`
	Legs               []legPayload `json:"legs"`
	AmountPerCycle     string       `json:"amountPerCycle"`
	CycleInterval      int64        `json:"cycleInterval"`
	MaxGasPrice        string       `json:"maxGasPrice"`
	LastExecutionTime  int64        `json:"lastExecutionTime"`
	FundingMode        string       `json:"fundingMode"`
	Escrow             string       `json:"escrow"`
	Armed              bool         `json:"armed"`
	FinalizationReason string       `json:"finalizationReason"`
}

type legResultPayload struct {
	AssetIn   string `json:"assetIn"`
	AssetOut  string `json:"assetOut"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Error     string `json:"error,omitempty"`
}

type receiptPayload struct {
	Timestamp int64              `json:"timestamp"`
	Legs      []legResultPayload `json:"legs"`
}

type userPayload struct {
	Address  string           `json:"address"`
	Position *positionPayload `json:"position,omitempty"`
	Treasury string           `json:"treasury"`
	Receipts []receiptPayload `json:"receipts"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (s *Server) handleAssets(w http.ResponseWriter, _ *http.Request) {
	assets, err := s.engine.FetchAllowedAssets()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, map[string][]string{"assets": assets})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := s.engine.FetchUserData(addr.Raw())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	payload := userPayload{
		Address:  addr.String(),
		Treasury: amountString(data.Treasury),
		Receipts: make([]receiptPayload, len(data.Receipts)),
	}
	if pos := data.Position; pos != nil {
		p := positionPayload{
			PrincipalAsset:     pos.PrincipalAsset,
			Legs:               make([]legPayload, len(pos.Legs)),
			AmountPerCycle:     amountString(pos.AmountPerCycle),
			CycleInterval:      pos.CycleInterval,
			MaxGasPrice:        amountString(pos.MaxGasPrice),
			LastExecutionTime:  pos.LastExecutionTime,
			FundingMode:        pos.Mode.String(),
			Escrow:             amountString(pos.Escrow),
			Armed:              pos.Armed(),
			FinalizationReason: pos.FinalizationReason,
		}
		for i, leg := range pos.Legs {
			p.Legs[i] = legPayload{
				Asset:          leg.Asset,
				WeightBps:      leg.WeightBps,
				MaxSlippageBps: leg.MaxSlippageBps,
				Route:          leg.Route,
				Accumulated:    amountString(leg.Accumulated),
			}
		}
		payload.Position = &p
	}
	for i, receipt := range data.Receipts {
		rp := receiptPayload{Timestamp: receipt.Timestamp, Legs: make([]legResultPayload, len(receipt.Legs))}
		for j, leg := range receipt.Legs {
			rp.Legs[j] = legResultPayload{
				AssetIn:   leg.AssetIn,
				AssetOut:  leg.AssetOut,
				AmountIn:  amountString(leg.AmountIn),
				AmountOut: amountString(leg.AmountOut),
				Error:     leg.Error,
			}
		}
		payload.Receipts[i] = rp
	}
	s.writeJSON(w, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
