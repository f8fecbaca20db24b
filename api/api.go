package api

import (
	"net/http"

	"github.com/typesense/typesense-go/typesense/api"

	"github.com/vendahub/tesouro/config"

	"github.com/vendahub/tesouro/api/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	tesouro "github.com/vendahub/tesouro"
)

type Api struct {
	tesouro *tesouro.Tesouro
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/withdrawals", a.RequestWithdrawal)
	router.GET("/withdrawals/:id", a.GetWithdrawal)
	router.GET("/withdrawals", a.GetWithdrawals)
	router.POST("/withdrawals/:id/metadata", a.UpdateWithdrawalMetadata)

	router.POST("/balances", a.CreateBalance)
	router.GET("/balances/:tenant_id", a.GetBalance)
	router.GET("/balances/:tenant_id/snapshot", a.GetBalanceSnapshot)

	router.GET("/financial-stats", a.GetFinancialStats)

	router.GET("/ledger", a.GetLedger)
	router.GET("/ledger/verify", a.VerifyLedger)

	router.POST("/sales/settled", a.RecordSettledSale)

	router.POST("/fiscal-keys", a.GenerateFiscalKey)
	router.GET("/fiscal-keys/:key", a.ValidateFiscalKey)

	router.GET("/security-audits", a.GetSecurityAudits)

	router.POST("/webhooks/settlement", a.SettlementWebhook)

	router.POST("/hooks", a.RegisterHook)
	router.GET("/hooks", a.ListHooks)
	router.GET("/hooks/:id", a.GetHook)
	router.PUT("/hooks/:id", a.UpdateHook)
	router.DELETE("/hooks/:id", a.DeleteHook)

	router.POST("/recover-submissions", a.RecoverSubmissions)

	router.POST("/api-keys", a.CreateAPIKey)
	router.GET("/api-keys", a.ListAPIKeys)
	router.DELETE("/api-keys/:id", a.RevokeAPIKey)

	router.GET("/backup", a.BackupDB)
	router.GET("/backup-s3", a.BackupDBS3)

	router.POST("/search/:collection", a.Search)
	router.POST("/multi-search", a.MultiSearch)

	router.POST("/reindex", a.StartReindex)
	router.GET("/reindex/progress", a.GetReindexProgress)

	router.GET("/health", a.Health)
	return a.router
}

func NewAPI(t *tesouro.Tesouro) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware("tesouro"))
	r.Use(middleware.RateLimitMiddleware(conf))
	// Authenticate self-disables when Server.Secure is off, so it is
	// always registered. It accepts the master key or tenant API keys.
	r.Use(middleware.NewAuthMiddleware(t).Authenticate())

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{tesouro: t, router: r}
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass id in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.tesouro.Search(collection, &query)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) MultiSearch(c *gin.Context) {
	var searches api.MultiSearchSearchesParameter
	if err := c.BindJSON(&searches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := a.tesouro.MultiSearch(&searches)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Health reports database and Redis reachability. Probes hit this, so
// it bypasses authentication.
func (a Api) Health(c *gin.Context) {
	components, healthy := a.tesouro.HealthCheck(c.Request.Context())

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	c.JSON(status, gin.H{"status": state, "components": components})
}
