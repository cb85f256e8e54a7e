package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/mnemo/internal/config"
	"github.com/conorfennell/mnemo/internal/domain"
	"github.com/conorfennell/mnemo/internal/session"
	"github.com/conorfennell/mnemo/internal/sm2"
	"github.com/conorfennell/mnemo/internal/storage"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server holds the dependencies for the HTTP server. It is a thin
// presentation seam: all scheduling decisions live in sm2 and session.
type Server struct {
	db        *storage.DB
	sessions  *session.Controller
	study     config.Study
	router    *http.ServeMux
	validate  *validator.Validate
	templates *template.Template
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, study config.Study) *Server {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	s := &Server{
		db: db,
		sessions: session.New(db, session.Options{
			TestLimit:   study.TestLimit,
			CardTimeout: study.CardTimeout(),
		}),
		study:     study,
		router:    http.NewServeMux(),
		validate:  validator.New(),
		templates: tpl,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("Failed to create sub-filesystem for static assets: %v", err)
	}
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.HandleFunc("GET /{$}", s.handleIndex())
	s.router.HandleFunc("POST /decks", s.handleCreateDeck())
	s.router.HandleFunc("GET /decks/{id}", s.handleDeckDetail())
	s.router.HandleFunc("DELETE /decks/{id}", s.handleDeleteDeck())
	s.router.HandleFunc("POST /decks/{id}/cards", s.handleCreateCard())
	s.router.HandleFunc("DELETE /cards/{id}", s.handleDeleteCard())

	s.router.HandleFunc("POST /study/start", s.handleStartSession())
	s.router.HandleFunc("GET /study/card", s.handleCurrentCard())
	s.router.HandleFunc("GET /study/answer/{id}", s.handleShowAnswer())
	s.router.HandleFunc("POST /study/review", s.handlePostReview())
	s.router.HandleFunc("POST /study/end", s.handleEndSession())

	s.router.HandleFunc("GET /export", s.handleExport())
	s.router.HandleFunc("POST /import", s.handleImport())
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Warn("Failed to render template", "template", name, "error", err)
	}
}

// handleIndex renders the deck list with global stats.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"Decks": s.db.ListDecks(),
			"Stats": s.db.GetStats(),
		}
		s.render(w, "index", data)
	}
}

type deckForm struct {
	Name        string `validate:"required,max=120"`
	Description string `validate:"max=500"`
	Subject     string `validate:"max=120"`
}

// handleCreateDeck adds a deck and re-renders the deck list.
func (s *Server) handleCreateDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := deckForm{
			Name:        r.PostFormValue("name"),
			Description: r.PostFormValue("description"),
			Subject:     r.PostFormValue("subject"),
		}
		if err := s.validate.Struct(form); err != nil {
			http.Error(w, "Invalid deck: "+err.Error(), http.StatusBadRequest)
			return
		}

		if _, err := s.db.CreateDeck(form.Name, form.Description, form.Subject); err != nil {
			slog.Warn("Failed to create deck", "error", err)
			http.Error(w, "Failed to create deck", http.StatusInternalServerError)
			return
		}
		s.render(w, "deck_list", map[string]any{"Decks": s.db.ListDecks()})
	}
}

// handleDeckDetail renders one deck with its scheduling statistics and the
// suggested study order.
func (s *Server) handleDeckDetail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		deck := s.db.GetDeck(id)
		if deck == nil {
			http.NotFound(w, r)
			return
		}
		cards := s.db.ListCards(id)
		now := time.Now()
		data := map[string]any{
			"Deck":      deck,
			"Cards":     cards,
			"Stats":     sm2.Stats(cards, now),
			"Retention": sm2.RetentionRate(cards),
			"Goal":      sm2.Goal(cards, now, s.study.NewCardHorizonDays, s.study.MinutesPerCard),
			"Order":     sm2.StudyOrder(cards),
		}
		s.render(w, "deck_detail", data)
	}
}

// handleDeleteDeck removes a deck and every card in it, then re-renders
// the deck list.
func (s *Server) handleDeleteDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.DeleteDeck(r.PathValue("id")); err != nil {
			slog.Warn("Failed to delete deck", "id", r.PathValue("id"), "error", err)
			http.Error(w, "Failed to delete deck", http.StatusInternalServerError)
			return
		}
		s.render(w, "deck_list", map[string]any{"Decks": s.db.ListDecks()})
	}
}

type cardForm struct {
	Question   string `validate:"required"`
	Answer     string `validate:"required"`
	Difficulty string `validate:"omitempty,oneof=easy medium hard"`
}

// handleCreateCard adds a card to a deck and re-renders the deck detail.
func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID := r.PathValue("id")
		form := cardForm{
			Question:   r.PostFormValue("question"),
			Answer:     r.PostFormValue("answer"),
			Difficulty: r.PostFormValue("difficulty"),
		}
		if err := s.validate.Struct(form); err != nil {
			http.Error(w, "Invalid card: "+err.Error(), http.StatusBadRequest)
			return
		}

		if _, err := s.db.CreateCard(deckID, form.Question, form.Answer, domain.Difficulty(form.Difficulty)); err != nil {
			slog.Warn("Failed to create card", "deck_id", deckID, "error", err)
			http.Error(w, "Failed to create card", http.StatusInternalServerError)
			return
		}
		s.handleDeckDetail()(w, r)
	}
}

// handleDeleteCard removes a card.
func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.DeleteCard(r.PathValue("id")); err != nil {
			slog.Warn("Failed to delete card", "id", r.PathValue("id"), "error", err)
			http.Error(w, "Failed to delete card", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// handleStartSession begins a study session over a deck, replacing any
// session in progress, and renders the first card.
func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID := r.PostFormValue("deck")
		mode := domain.Mode(r.PostFormValue("mode"))
		switch mode {
		case domain.Learn, domain.Test, domain.Review:
		default:
			mode = domain.Learn
		}
		s.sessions.Start(deckID, mode)
		s.renderCurrentCard(w)
	}
}

// handleCurrentCard renders the card under the session cursor.
func (s *Server) handleCurrentCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderCurrentCard(w)
	}
}

func (s *Server) renderCurrentCard(w http.ResponseWriter) {
	state := s.sessions.Session()
	if !state.Active {
		s.render(w, "session_idle", nil)
		return
	}
	card, ok := s.sessions.Current()
	if !ok {
		// Complete, or the working set was empty from the start: both are
		// terminal displays, not errors.
		s.render(w, "session_done", state)
		return
	}
	s.render(w, "card_front", map[string]any{"Card": card, "State": state, "Position": state.Index + 1})
}

// handleShowAnswer renders the back of the current card with grade buttons.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		card, ok := s.sessions.Current()
		if !ok || card.ID != id {
			http.NotFound(w, r)
			return
		}
		s.render(w, "card_back", map[string]any{"Card": card, "State": s.sessions.Session()})
	}
}

// handlePostReview grades the card, advances the cursor and renders what
// comes next. Out-of-range grades are clamped, not rejected.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID := r.PostFormValue("card")
		grade, err := strconv.Atoi(r.PostFormValue("quality"))
		if err != nil {
			http.Error(w, "Invalid grade", http.StatusBadRequest)
			return
		}

		if err := s.sessions.Review(cardID, sm2.Quality(grade)); err != nil {
			slog.Warn("Failed to record review", "card_id", cardID, "error", err)
			http.Error(w, "Failed to record review", http.StatusInternalServerError)
			return
		}
		s.sessions.Advance()
		s.renderCurrentCard(w)
	}
}

// handleEndSession discards the session.
func (s *Server) handleEndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.End()
		s.render(w, "session_idle", nil)
	}
}

// handleExport streams the full snapshot as a JSON download.
func (s *Server) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="mnemo-snapshot.json"`)
		if err := json.NewEncoder(w).Encode(s.db.ExportSnapshot()); err != nil {
			slog.Warn("Failed to write snapshot export", "error", err)
		}
	}
}

// handleImport replaces the collections present in the posted snapshot.
func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap domain.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			http.Error(w, "Invalid snapshot: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.db.ImportSnapshot(snap); err != nil {
			slog.Warn("Failed to import snapshot", "error", err)
			http.Error(w, "Failed to import snapshot", http.StatusInternalServerError)
			return
		}
		s.render(w, "deck_list", map[string]any{"Decks": s.db.ListDecks()})
	}
}
