package middleware

import (
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "fildawallet/native/common"
	"fildawallet/observability"
)

// QuotaTracker enforces nativecommon.Quota per caller. The middleware counts
// requests; handlers charge the native value they move through Charge.
type QuotaTracker struct {
	quota    nativecommon.Quota
	mu       sync.Mutex
	usage    map[common.Address]nativecommon.QuotaNow
	clockNow func() time.Time
}

func NewQuotaTracker(q nativecommon.Quota) *QuotaTracker {
	return &QuotaTracker{
		quota:    q,
		usage:    make(map[common.Address]nativecommon.QuotaNow),
		clockNow: time.Now,
	}
}

// Charge books one request and value against caller.
func (q *QuotaTracker) Charge(caller common.Address, requests uint32, value *big.Int) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	epoch := q.quota.Epoch(q.clockNow().Unix())
	next, err := nativecommon.CheckQuota(q.quota, epoch, q.usage[caller], requests, value)
	if err != nil {
		return err
	}
	q.usage[caller] = next
	return nil
}

// Middleware counts one request per authenticated caller. Anonymous requests
// pass through untouched.
func (q *QuotaTracker) Middleware(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if q == nil || !ok {
				next.ServeHTTP(w, r)
				return
			}
			if err := q.Charge(caller, 1, nil); err != nil {
				observability.ModuleMetrics().RecordThrottle(module, "quota")
				status := http.StatusTooManyRequests
				if errors.Is(err, nativecommon.ErrQuotaCounterOverflow) {
					status = http.StatusInternalServerError
				}
				http.Error(w, err.Error(), status)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
