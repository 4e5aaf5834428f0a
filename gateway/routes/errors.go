package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	nativecommon "fildawallet/native/common"
	"fildawallet/native/factory"
	"fildawallet/native/protocol"
	"fildawallet/native/registry"
	"fildawallet/native/wallet"
)

var (
	errNoCaller   = errors.New("authenticated caller required")
	errBadRequest = errors.New("bad request")
)

// statusFor maps a domain error onto the HTTP status reported to clients.
func statusFor(err error) int {
	var protocolErr *wallet.ProtocolError
	switch {
	case errors.Is(err, errNoCaller):
		return http.StatusUnauthorized
	case errors.Is(err, protocol.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, factory.ErrUnknownWallet):
		return http.StatusNotFound
	case errors.Is(err, factory.ErrWalletExists):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, protocol.ErrInvalidTarget),
		errors.Is(err, factory.ErrZeroOwner):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrRegistryNotSealed),
		errors.Is(err, wallet.ErrNotWithdrawable),
		errors.Is(err, wallet.ErrBatchNotWithdrawable):
		return http.StatusPreconditionFailed
	case errors.Is(err, wallet.ErrNoDebt),
		errors.Is(err, wallet.ErrInsufficientAllowance),
		errors.Is(err, wallet.ErrRewardNotSwept),
		errors.Is(err, wallet.ErrUnsupportedUnderlying):
		return http.StatusUnprocessableEntity
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded),
		errors.Is(err, nativecommon.ErrQuotaValueExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.As(err, &protocolErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		replacer := strings.NewReplacer(
			"\\", "\\\\",
			"\"", "\\\"",
			"\n", "\\n",
			"\r", "\\r",
			"\t", "\\t",
		)
		payload = []byte(fmt.Sprintf("{\"error\":\"%s\"}", replacer.Replace(message)))
	}
	_, _ = w.Write(payload)
}
