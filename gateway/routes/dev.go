package routes

import (
	"net/http"

	"fildawallet/observability"
)

const maxMineBlocks = 100_000

type mineRequest struct {
	Blocks uint64 `json:"blocks"`
}

type mineResponse struct {
	Height uint64 `json:"height"`
}

// mine advances the simulated chain. Only mounted on development networks.
func (s *service) mine(w http.ResponseWriter, r *http.Request) {
	req := mineRequest{Blocks: 1}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if req.Blocks == 0 || req.Blocks > maxMineBlocks {
		s.fail(w, r, badRequest("blocks must be between 1 and %d", maxMineBlocks))
		return
	}
	height, err := s.chain.Mine(req.Blocks)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observability.Chain().SetHeight(height)
	writeJSON(w, http.StatusOK, mineResponse{Height: height})
}
