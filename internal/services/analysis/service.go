package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"minerva/internal/adapters/ai"
	"minerva/internal/agents"
	"minerva/internal/domain/conversation"
	"minerva/internal/gateway"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Service is the application-layer facade over the orchestration engine:
// session lifecycle, query submission, and convenience wrappers for the
// common analysis shapes.
type Service struct {
	coordinator *agents.Coordinator
	sessions    conversation.Repository
	registry    *ai.ProviderRegistry
	gateway     *gateway.Gateway
	tiers       []WorkerTier

	serviceName  string
	version      string
	cacheEnabled bool
	startTime    time.Time

	log *logger.Logger
}

// NewService creates the analysis application service
func NewService(
	coordinator *agents.Coordinator,
	sessions conversation.Repository,
	registry *ai.ProviderRegistry,
	gw *gateway.Gateway,
	tiers []WorkerTier,
	serviceName string,
	version string,
	cacheEnabled bool,
) *Service {
	return &Service{
		coordinator:  coordinator,
		sessions:     sessions,
		registry:     registry,
		gateway:      gw,
		tiers:        tiers,
		serviceName:  serviceName,
		version:      version,
		cacheEnabled: cacheEnabled,
		startTime:    time.Now(),
		log:          logger.Get().With("component", "analysis_service"),
	}
}

// StartSession begins a new conversation
func (s *Service) StartSession(ctx context.Context) (*conversation.Session, error) {
	session, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}

	metrics.SessionsActive.Inc()
	s.log.Infow("Session started", "session_id", session.ID.String())
	return session, nil
}

// EndSession discards the conversation and its history
func (s *Service) EndSession(ctx context.Context, id uuid.UUID) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete session")
	}

	metrics.SessionsActive.Dec()
	s.log.Infow("Session ended", "session_id", id.String())
	return nil
}

// SubmitQuery runs one full analysis turn for the session
func (s *Service) SubmitQuery(ctx context.Context, sessionID uuid.UUID, text string) (*conversation.SynthesizedResponse, error) {
	return s.coordinator.HandleQuery(ctx, sessionID, text)
}

// History returns the session's recorded turns, oldest first
func (s *Service) History(ctx context.Context, sessionID uuid.UUID) ([]conversation.Turn, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	return session.Turns, nil
}

// GetStockPrice asks for the current quote of one ticker
func (s *Service) GetStockPrice(ctx context.Context, sessionID uuid.UUID, ticker string) (*conversation.SynthesizedResponse, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ticker is required")
	}
	return s.SubmitQuery(ctx, sessionID, fmt.Sprintf("What is the current price of %s?", ticker))
}

// GetStockInfo asks for the company basics behind one ticker
func (s *Service) GetStockInfo(ctx context.Context, sessionID uuid.UUID, ticker string) (*conversation.SynthesizedResponse, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ticker is required")
	}
	return s.SubmitQuery(ctx, sessionID, fmt.Sprintf("Tell me about %s: what the company does, its sector and market cap.", ticker))
}

// AnalyzeStock asks for a comprehensive single-ticker analysis
func (s *Service) AnalyzeStock(ctx context.Context, sessionID uuid.UUID, ticker string) (*conversation.SynthesizedResponse, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ticker is required")
	}
	return s.SubmitQuery(ctx, sessionID, fmt.Sprintf("Give me a comprehensive analysis of %s including trend and technicals.", ticker))
}

// CompareStocks asks for a head-to-head comparison of two or more tickers
func (s *Service) CompareStocks(ctx context.Context, sessionID uuid.UUID, tickers ...string) (*conversation.SynthesizedResponse, error) {
	cleaned, err := cleanTickers(tickers, 2)
	if err != nil {
		return nil, err
	}
	return s.SubmitQuery(ctx, sessionID, fmt.Sprintf("Compare %s head to head: which is the better buy?", strings.Join(cleaned, " and ")))
}

// PortfolioAnalysis asks for a portfolio-level review of the holdings
func (s *Service) PortfolioAnalysis(ctx context.Context, sessionID uuid.UUID, tickers ...string) (*conversation.SynthesizedResponse, error) {
	cleaned, err := cleanTickers(tickers, 1)
	if err != nil {
		return nil, err
	}
	return s.SubmitQuery(ctx, sessionID, fmt.Sprintf("Review my portfolio of %s: diversification, risks, and what to watch.", strings.Join(cleaned, ", ")))
}

// MarketResearch submits a freeform research question
func (s *Service) MarketResearch(ctx context.Context, sessionID uuid.UUID, question string) (*conversation.SynthesizedResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "question is required")
	}
	return s.SubmitQuery(ctx, sessionID, question)
}

func cleanTickers(tickers []string, min int) ([]string, error) {
	cleaned := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) < min {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "at least %d tickers required, got %d", min, len(cleaned))
	}
	return cleaned, nil
}
