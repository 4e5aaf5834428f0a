package routes

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"fildawallet/crypto"
	"fildawallet/gateway/middleware"
	"fildawallet/native/protocol"
)

const maxBodyBytes = 1 << 16

type amountRequest struct {
	Amount string `json:"amount"`
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest("decode body: %v", err)
	}
	return nil
}

// parseAmount accepts a decimal wei string.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, badRequest("invalid amount %q", value)
	}
	return amount, nil
}

func amountBody(r *http.Request) (*big.Int, error) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return parseAmount(req.Amount)
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return common.Address{}, badRequest("%s: %v", name, err)
	}
	return addr, nil
}

func targetParam(r *http.Request) (protocol.TargetID, error) {
	return protocol.ParseTarget(chi.URLParam(r, "target"))
}

func callerOf(r *http.Request) (common.Address, error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return common.Address{}, errNoCaller
	}
	return caller, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
