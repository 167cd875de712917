package possync

import (
	"errors"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/gin-gonic/gin"
)

// Engine bundles what the HTTP surface needs. Sync failures never block
// order-taking: the enqueue handler touches only the local store.
type Engine struct {
	State        *StateManager
	Monitor      *NetworkMonitor
	Pusher       *Pusher
	Bootstrapper *Bootstrapper
	Reconciler   *Reconciler
	TerminalId   string
}

func StatusHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		pending, err := models.CountPendingTransactions(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		catalogCounts, err := models.CountCatalogItems(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		cursor, err := models.GetSyncCursor(ctx, engine.TerminalId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			TerminalId:      engine.TerminalId,
			Online:          engine.Monitor.Online(),
			Phase:           string(engine.State.Phase()),
			PendingCount:    pending,
			CatalogCounts:   catalogCounts,
			LastBootstrapAt: formatTime(cursor.LastBootstrapAt),
			LastPushAt:      formatTime(cursor.LastPushAt),
			LastMergeAt:     formatTime(cursor.LastMergeAt),
		})
	}
}

// EnqueueOrderHandler appends an order to the local queue. Works identically
// online and offline.
func EnqueueOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPendingTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		record, err := models.EnqueueTransaction(c.Request.Context(), &input)
		if err != nil {
			var validationErr *utils.ValidationError
			if errors.As(err, &validationErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func EnqueueActivityLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewActivityLog
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		record, err := models.CreateActivityLog(c.Request.Context(), &input)
		if err != nil {
			var validationErr *utils.ValidationError
			if errors.As(err, &validationErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

// FlushHandler triggers a manual flush from the terminal UI.
func FlushHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := engine.Pusher.Flush(c.Request.Context())
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, utils.ErrSyncInProgress):
				status = http.StatusConflict
			case utils.IsNetworkUnavailable(err):
				// Not an error from the operator's point of view: the queue
				// stays intact and the worker retries.
				c.JSON(http.StatusAccepted, gin.H{"queued": true, "error": "server unreachable"})
				return
			case errors.Is(err, utils.ErrServerUnavailable):
				status = http.StatusBadGateway
			case utils.IsServerRejected(err):
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// BootstrapHandler triggers a manual catalog refresh.
func BootstrapHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := engine.Bootstrapper.Run(c.Request.Context())
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, utils.ErrSyncInProgress):
				status = http.StatusConflict
			case utils.IsNetworkUnavailable(err):
				c.JSON(http.StatusAccepted, gin.H{"queued": true, "error": "server unreachable"})
				return
			case errors.Is(err, utils.ErrServerUnavailable):
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// MergeHandler runs the operator-triggered full-store reconciliation.
// Failures always surface; the operator re-runs manually.
func MergeHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := engine.Reconciler.Reconcile(c.Request.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, utils.ErrSyncInProgress) {
				status = http.StatusConflict
			}
			body := gin.H{"error": err.Error()}
			if report != nil {
				body["partialReport"] = report
			}
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}
