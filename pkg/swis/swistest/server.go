// Package swistest provides an in-process fake of the SWIS JSON API for tests.
package swistest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const basePath = "/SolarWinds/InformationService/v3/Json"

// Call is one request received by the fake.
type Call struct {
	Kind   string // query, invoke or update
	Query  string
	Params map[string]any
	Entity string
	Verb   string
	Args   []any
	URI    string
	Props  map[string]any
}

type reply struct {
	status int
	body   any
	raw    []byte
}

// Server is a fake SWIS endpoint. Queries answer with the rows registered for
// their exact text (none by default); verbs answer null unless a reply was set.
type Server struct {
	*httptest.Server

	username string
	password string

	mu           sync.Mutex
	rows         map[string][]map[string]any
	replies      map[string]reply
	updateStatus int
	calls        []Call
}

func init() {
	gin.SetMode(gin.TestMode)
}

// NewServer starts a fake accepting the given basic-auth account.
func NewServer(username, password string) *Server {
	s := &Server{
		username:     username,
		password:     password,
		rows:         make(map[string][]map[string]any),
		replies:      make(map[string]reply),
		updateStatus: http.StatusOK,
	}

	router := gin.New()
	router.Use(s.authenticate)
	api := router.Group(basePath)
	api.POST("/Query", s.handleQuery)
	api.POST("/Invoke/:entity/:verb", s.handleInvoke)
	router.NoRoute(s.handleUpdate)

	s.Server = httptest.NewServer(router)
	return s
}

// SetRows registers the rows returned for query.
func (s *Server) SetRows(query string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[query] = rows
}

// SetReply makes entity.verb answer 200 with body.
func (s *Server) SetReply(entity, verb string, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[entity+"/"+verb] = reply{status: http.StatusOK, body: body}
}

// SetRawReply makes entity.verb answer 200 with raw as the body, unchecked.
func (s *Server) SetRawReply(entity, verb, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[entity+"/"+verb] = reply{status: http.StatusOK, raw: []byte(raw)}
}

// FailInvoke makes entity.verb answer with an HTTP fault.
func (s *Server) FailInvoke(entity, verb string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[entity+"/"+verb] = reply{status: status}
}

// FailUpdates makes every entity update answer with status.
func (s *Server) FailUpdates(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStatus = status
}

// Calls returns every request received so far, in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Invocations returns the calls made to entity.verb.
func (s *Server) Invocations(entity, verb string) []Call {
	var matched []Call
	for _, call := range s.Calls() {
		if call.Kind == "invoke" && call.Entity == entity && call.Verb == verb {
			matched = append(matched, call)
		}
	}
	return matched
}

// Updates returns the entity updates received.
func (s *Server) Updates() []Call {
	var matched []Call
	for _, call := range s.Calls() {
		if call.Kind == "update" {
			matched = append(matched, call)
		}
	}
	return matched
}

func (s *Server) record(call Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// respondError mirrors the SWIS fault body
func respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{
		"Message":       message,
		"ExceptionType": "SolarWinds.InformationService.Contract2.InfoServiceFaultContract",
	})
}

func (s *Server) authenticate(c *gin.Context) {
	user, pass, ok := c.Request.BasicAuth()
	if !ok || user != s.username || pass != s.password {
		respondError(c, http.StatusForbidden, "Authentication failed")
		return
	}
	c.Next()
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		Query      string         `json:"query"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.record(Call{Kind: "query", Query: req.Query, Params: req.Parameters})

	s.mu.Lock()
	rows := s.rows[req.Query]
	s.mu.Unlock()
	if rows == nil {
		rows = []map[string]any{}
	}
	c.JSON(http.StatusOK, gin.H{"results": rows})
}

func (s *Server) handleInvoke(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	var args []any
	if err := json.Unmarshal(raw, &args); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	entity, verb := c.Param("entity"), c.Param("verb")
	s.record(Call{Kind: "invoke", Entity: entity, Verb: verb, Args: args})

	s.mu.Lock()
	r, ok := s.replies[entity+"/"+verb]
	s.mu.Unlock()
	switch {
	case !ok:
		c.Data(http.StatusOK, "application/json", []byte("null"))
	case r.status != http.StatusOK:
		respondError(c, r.status, "Verb "+entity+"."+verb+" failed")
	case r.raw != nil:
		c.Data(http.StatusOK, "application/json", r.raw)
	default:
		c.JSON(http.StatusOK, r.body)
	}
}

func (s *Server) handleUpdate(c *gin.Context) {
	path := c.Request.URL.Path
	if c.Request.Method != http.MethodPost || !strings.HasPrefix(path, basePath+"/swis:") {
		respondError(c, http.StatusNotFound, "no route for "+path)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.record(Call{Kind: "update", URI: strings.TrimPrefix(path, basePath+"/"), Props: props})

	s.mu.Lock()
	status := s.updateStatus
	s.mu.Unlock()
	if status != http.StatusOK {
		respondError(c, status, "Update failed")
		return
	}
	c.Status(http.StatusOK)
}
