package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/fatoora/internal/document"
	"github.com/rezonia/fatoora/internal/emitter"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/qr"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server exposes the emission pipeline over HTTP
type Server struct {
	config  *Config
	router  *gin.Engine
	emitter *emitter.Emitter
	log     *logger.Logger
}

// NewServer creates the API server over a configured emitter
func NewServer(config *Config, em *emitter.Emitter, log *logger.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:  config,
		router:  router,
		emitter: em,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/invoices", s.handleEmit)
		v1.POST("/invoices/preview", s.handlePreview)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/qr", s.handleQREncode)
		v1.POST("/qr/decode", s.handleQRDecode)
		v1.GET("/sequences/:tenant/:unit", s.handleSequence)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleEmit(c *gin.Context) {
	var input emitter.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	// covers drafting, signing and the bounded submission retries
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	result := s.emitter.Emit(ctx, &input)

	var qrImage []byte
	var xmlB64 string
	if result.Invoice != nil && result.Invoice.QRPayload != "" {
		if png, err := qr.RenderPNG(result.Invoice.QRPayload, 0); err == nil {
			qrImage = png
		}
	}
	if len(result.XML) > 0 {
		xmlB64 = encodeBase64(result.XML)
	}

	resp := emitResponse(result, qrImage, xmlB64)
	c.JSON(emitStatusCode(result), resp)
}

// emitStatusCode maps a pipeline outcome to an HTTP status: caller data
// problems are 422, upstream and signing failures are 502
func emitStatusCode(result *emitter.Result) int {
	switch result.Status {
	case emitter.StatusAccepted:
		return http.StatusOK
	case emitter.StatusRejected:
		return http.StatusUnprocessableEntity
	}
	switch result.Stage {
	case emitter.StageDrafting, emitter.StageQREncoding, emitter.StageValidating:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handlePreview(c *gin.Context) {
	var input emitter.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	inv, draft, err := s.emitter.Preview(&input)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, EmitResponse{
		Status: "draft",
		Badge:  "not-yet-submitted",
		UUID:   inv.UUID,
		Number: inv.Number,
		XML:    encodeBase64(draft),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}

	if err := document.Validate(body); err != nil {
		var validationErr *model.ValidationError
		resp := ValidationResponse{Valid: false}
		if errors.As(err, &validationErr) {
			resp.MissingElement = validationErr.Element
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, ValidationResponse{Valid: true})
}

func (s *Server) handleQREncode(c *gin.Context) {
	var req QREncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	payload, err := qr.Encode([]qr.Field{
		qr.String(qr.TagSellerName, req.SellerName),
		qr.String(qr.TagVATNumber, req.VATNumber),
		qr.String(qr.TagTimestamp, req.Timestamp),
		qr.String(qr.TagGrossTotal, req.GrossTotal),
		qr.String(qr.TagTaxTotal, req.TaxTotal),
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	resp := QRResponse{Payload: payload}
	if png, err := qr.RenderPNG(payload, req.ImageSize); err == nil {
		resp.Image = encodeBase64(png)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQRDecode(c *gin.Context) {
	var req QRDecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	fields, err := qr.Decode(req.Payload)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]QRFieldOutput, 0, len(fields))
	for _, f := range fields {
		out = append(out, QRFieldOutput{Tag: f.Tag, Value: string(f.Value)})
	}
	c.JSON(http.StatusOK, gin.H{"fields": out})
}

func (s *Server) handleSequence(c *gin.Context) {
	key := model.SequenceKey{
		TenantID: c.Param("tenant"),
		UnitID:   c.Param("unit"),
	}

	state, err := s.emitter.ChainState(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SequenceResponse{
		TenantID:  key.TenantID,
		UnitID:    key.UnitID,
		Counter:   state.Counter,
		ChainHash: state.ChainHash,
	})
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
