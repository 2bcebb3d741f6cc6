package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ErrDisabled is returned when no news provider is configured.
var ErrDisabled = errors.New("news lookup is disabled")

// Company names used to widen the search for well-known prefixes.
var symbolNames = map[string]string{
	"AAP": "Apple",
	"MSF": "Microsoft",
	"GOO": "Google",
	"AMZ": "Amazon",
	"MET": "Facebook Meta",
	"TSL": "Tesla",
	"BTC": "Bitcoin",
	"ETH": "Ethereum",
}

// -----------------------------------------------------------------------------

type apiResponse struct {
	Status       string       `json:"status"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
}

type apiArticle struct {
	Source struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
	Content     *string `json:"content"`
}

// -----------------------------------------------------------------------------

// NewsSource queries a NewsAPI compatible endpoint and caches results per
// search query.
type NewsSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
	cache   *cache.Cache
}

// -----------------------------------------------------------------------------

func NewNewsSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *NewsSource {
	ttl := time.Duration(cfg.News.CacheTTLSeconds) * time.Second
	return &NewsSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  log,
		cache:   cache.New(ttl, 2*ttl),
	}
}

// -----------------------------------------------------------------------------

// BuildQuery expands the first three letters of symbol into a search query.
func BuildQuery(symbol string) string {
	short := strings.ToUpper(strings.TrimSpace(symbol))
	if len(short) > 3 {
		short = short[:3]
	}

	if name, ok := symbolNames[short]; ok {
		return fmt.Sprintf("%s OR %s stock market", short, name)
	}
	return fmt.Sprintf("%s stock OR %s trading OR %s market", short, short, short)
}

// -----------------------------------------------------------------------------

// FetchNews returns the latest headlines for symbol. An empty symbol yields no
// articles and no error.
func (s *NewsSource) FetchNews(ctx context.Context, symbol string) ([]models.MNewsArticle, error) {
	cfg := s.Config.News
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(symbol) == "" {
		return []models.MNewsArticle{}, nil
	}

	query := BuildQuery(symbol)
	if cached, ok := s.cache.Get(query); ok {
		return cached.([]models.MNewsArticle), nil
	}

	log := s.Logger.With("request_id", uuid.New().String())
	log.Debug("Fetching news for %q", query)

	params := map[string]string{
		"q":        query,
		"language": cfg.Language,
		"sortBy":   "publishedAt",
		"pageSize": strconv.Itoa(cfg.PageSize),
		"apiKey":   cfg.APIKey,
	}

	body, err := s.Network.Get(ctx, cfg.BaseURL, params)
	if err != nil {
		return nil, helpers.NewFetchError("fetch news", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewFetchError("decode news", err)
	}
	if resp.Status != "ok" {
		return nil, helpers.NewFetchError(fmt.Sprintf("news provider returned %q", resp.Status), errors.New(resp.Message))
	}

	articles := make([]models.MNewsArticle, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		articles = append(articles, models.MNewsArticle{
			Source:      a.Source.Name,
			Author:      deref(a.Author),
			Title:       a.Title,
			Description: deref(a.Description),
			URL:         a.URL,
			ImageURL:    deref(a.URLToImage),
			PublishedAt: a.PublishedAt,
		})
	}

	s.cache.Set(query, articles, cache.DefaultExpiration)
	log.Info("Fetched %d articles for %s", len(articles), strings.ToUpper(symbol))
	return articles, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
