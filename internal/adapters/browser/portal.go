package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"rate-radar/internal/domain"
	"rate-radar/internal/infra/metrics"
	"rate-radar/internal/usecase/session"
)

// Селекторы портала. Подбор best-effort: несовпадение вырождается в
// «нет данных», а не в ошибку.
const (
	loginFormSelector     = `form[data-testid="login-form"]`
	loginUserSelector     = `form[data-testid="login-form"] input[name="email"]`
	loginPassSelector     = `form[data-testid="login-form"] input[name="password"]`
	loginSubmitSelector   = `form[data-testid="login-form"] button[type="submit"]`
	accountMenuSelector   = `[data-testid="account-menu"]`
	destinationSelector   = `input[data-testid="destination-input"]`
	checkInSelector       = `input[data-testid="checkin-input"]`
	checkOutSelector      = `input[data-testid="checkout-input"]`
	searchSubmitSelector  = `button[data-testid="search-submit"]`
	resultCardSelector    = `[data-testid="serp-card"]`
	extractResultCardsJS  = `Array.from(document.querySelectorAll('[data-testid="serp-card"]')).map(card => ({
		name: (card.querySelector('[data-testid="serp-card-title"]')?.textContent || '').trim(),
		price: (card.querySelector('[data-testid="serp-card-price"]')?.textContent || '').trim(),
	}))`
	dateInputFormat = "02.01.2006"
)

// Config задаёт адреса и тайминги портала.
type Config struct {
	BaseURL     string
	SearchPath  string
	Destination string
	Headless    bool
	NavTimeout  time.Duration
	StepTimeout time.Duration
}

// Portal управляет одним браузерным контекстом для одного владельца.
// Жизненный цикл строго последовательный: Initialize → Authenticate →
// N × Search → Shutdown; контекст не разделяется между запусками.
type Portal struct {
	cfg      Config
	sessions *session.Store
	ownerID  int64
	log      zerolog.Logger

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
}

var _ domain.Scraper = (*Portal)(nil)

// portalCookie — хранимая форма cookie из снимка сессии.
type portalCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
}

// NewPortal создаёт драйвер портала для владельца.
func NewPortal(cfg Config, sessions *session.Store, ownerID int64, log zerolog.Logger) *Portal {
	return &Portal{cfg: cfg, sessions: sessions, ownerID: ownerID, log: log}
}

// Initialize запускает браузер и восстанавливает сохранённую сессию в
// контекст до первой навигации, чтобы живая сессия пропускала форму входа.
func (p *Portal) Initialize(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1440, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)
	p.allocCancel = allocCancel
	p.tabCancel = tabCancel
	p.tab = tab

	start := time.Now()
	err := chromedp.Run(tab)
	metrics.ObserveNetworkRequest("browser", "launch", "chromium", start, err)
	if err != nil {
		p.releaseContexts()
		return fmt.Errorf("запуск браузера: %w", err)
	}

	if sess := p.sessions.Load(ctx, p.ownerID); sess != nil {
		if err := p.restoreCookies(sess.State); err != nil {
			// Браузер уже запущен: контексты гасятся здесь же, вызывающему
			// после ошибки инициализации гасить нечего.
			p.releaseContexts()
			return fmt.Errorf("восстановление сессии: %w", err)
		}
		p.log.Debug().Int64("owner", p.ownerID).Msg("browser: сессия восстановлена в контекст")
	}
	return nil
}

// releaseContexts отменяет контексты вкладки и аллокатора. Отмена контекста
// аллокатора дожидается завершения процесса браузера.
func (p *Portal) releaseContexts() {
	if p.tabCancel != nil {
		p.tabCancel()
		p.tabCancel = nil
	}
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	p.tab = nil
}

// Authenticate проверяет, не авторизован ли контекст уже, и только при
// необходимости проходит форму входа. Возвращает false без ошибки, если
// форма не найдена или маркер личного кабинета не появился за отведённое
// время. Сетевые ошибки здесь фатальны и пробрасываются наружу.
func (p *Portal) Authenticate(ctx context.Context, username, password string) (bool, error) {
	if err := p.navigateAdvisory(p.cfg.BaseURL); err != nil {
		return false, fmt.Errorf("переход на портал: %w", err)
	}
	if p.waitVisible(accountMenuSelector, p.cfg.StepTimeout/3) {
		// Сессия ещё жива, вход не нужен. Обновляем снимок.
		p.persistCookies(ctx)
		return true, nil
	}

	if !p.waitVisible(loginFormSelector, p.cfg.StepTimeout) {
		p.log.Warn().Int64("owner", p.ownerID).Msg("browser: форма входа не найдена")
		return false, nil
	}

	start := time.Now()
	err := p.runWithTimeout(p.cfg.StepTimeout,
		chromedp.SendKeys(loginUserSelector, username, chromedp.ByQuery),
		chromedp.SendKeys(loginPassSelector, password, chromedp.ByQuery),
		chromedp.Click(loginSubmitSelector, chromedp.ByQuery),
	)
	metrics.ObserveNetworkRequest("browser", "login_submit", "portal", start, err)
	if err != nil {
		return false, fmt.Errorf("отправка формы входа: %w", err)
	}

	if !p.waitVisible(accountMenuSelector, p.cfg.NavTimeout) {
		p.log.Warn().Int64("owner", p.ownerID).Msg("browser: личный кабинет не появился после входа")
		return false, nil
	}
	p.persistCookies(ctx)
	return true, nil
}

// Search выполняет поиск цены для одной ячейки. Несовпадение названия или
// нераспознанная цена — нормальный исход {available:false}. Ошибки
// навигации возвращаются и учитываются вызывающим как срыв одной ячейки.
func (p *Portal) Search(ctx context.Context, hotelName string, checkIn, checkOut time.Time) (domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchResult{}, err
	}
	searchURL := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.SearchPath
	if err := p.navigateAdvisory(searchURL); err != nil {
		return domain.SearchResult{}, fmt.Errorf("переход к поиску: %w", err)
	}

	start := time.Now()
	err := p.runWithTimeout(p.cfg.StepTimeout,
		chromedp.WaitVisible(destinationSelector, chromedp.ByQuery),
		chromedp.SetValue(destinationSelector, p.cfg.Destination, chromedp.ByQuery),
		chromedp.SetValue(checkInSelector, checkIn.Format(dateInputFormat), chromedp.ByQuery),
		chromedp.SetValue(checkOutSelector, checkOut.Format(dateInputFormat), chromedp.ByQuery),
		chromedp.Click(searchSubmitSelector, chromedp.ByQuery),
	)
	metrics.ObserveNetworkRequest("browser", "search_submit", "portal", start, err)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("заполнение поиска: %w", err)
	}

	// Ожидание выдачи — рекомендательное: итоговую правду даёт скан DOM.
	_ = p.waitVisible(resultCardSelector, p.cfg.NavTimeout)

	var cards []resultCard
	if err := p.runWithTimeout(p.cfg.StepTimeout, chromedp.Evaluate(extractResultCardsJS, &cards)); err != nil {
		return domain.SearchResult{}, fmt.Errorf("чтение выдачи: %w", err)
	}

	card, ok := matchCard(cards, hotelName)
	if !ok {
		return domain.SearchResult{Available: false}, nil
	}
	price, ok := parsePrice(card.Price)
	if !ok {
		return domain.SearchResult{Available: false}, nil
	}
	return domain.SearchResult{Price: &price, Available: true}, nil
}

// Shutdown останавливает браузер и освобождает контексты.
func (p *Portal) Shutdown(ctx context.Context) error {
	if p.tab == nil {
		return nil
	}
	err := chromedp.Cancel(p.tab)
	p.releaseContexts()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("остановка браузера: %w", err)
	}
	return nil
}

// navigateAdvisory переходит по адресу с ограниченным ожиданием. Истечение
// таймаута навигации не считается ошибкой: третья сторона асинхронна, и
// проверкой служит последующий скан DOM.
func (p *Portal) navigateAdvisory(url string) error {
	start := time.Now()
	err := p.runWithTimeout(p.cfg.NavTimeout, chromedp.Navigate(url))
	metrics.ObserveNetworkRequest("browser", "navigate", url, start, err)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// waitVisible ждёт появления элемента не дольше указанного времени.
func (p *Portal) waitVisible(selector string, timeout time.Duration) bool {
	err := p.runWithTimeout(timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return err == nil
}

func (p *Portal) runWithTimeout(timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// persistCookies сохраняет текущее состояние браузера как снимок сессии.
// Сбой сохранения не фатален: запуск продолжится, вход повторится в следующий раз.
func (p *Portal) persistCookies(ctx context.Context) {
	var raw []*network.Cookie
	err := p.runWithTimeout(p.cfg.StepTimeout, chromedp.ActionFunc(func(actionCtx context.Context) error {
		cookies, err := storage.GetCookies().Do(actionCtx)
		if err != nil {
			return err
		}
		raw = cookies
		return nil
	}))
	if err != nil {
		p.log.Warn().Err(err).Int64("owner", p.ownerID).Msg("browser: не удалось прочитать cookies")
		return
	}
	stored := make([]portalCookie, 0, len(raw))
	for _, c := range raw {
		stored = append(stored, portalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	state, err := json.Marshal(stored)
	if err != nil {
		p.log.Warn().Err(err).Int64("owner", p.ownerID).Msg("browser: не удалось сериализовать cookies")
		return
	}
	if err := p.sessions.Save(ctx, p.ownerID, state); err != nil {
		p.log.Warn().Err(err).Int64("owner", p.ownerID).Msg("browser: не удалось сохранить сессию")
	}
}

// restoreCookies переносит cookies из снимка сессии в браузерный контекст.
func (p *Portal) restoreCookies(state []byte) error {
	var cookies []portalCookie
	if err := json.Unmarshal(state, &cookies); err != nil {
		return fmt.Errorf("разбор снимка сессии: %w", err)
	}
	return p.runWithTimeout(p.cfg.StepTimeout, chromedp.ActionFunc(func(actionCtx context.Context) error {
		for _, c := range cookies {
			setter := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				setter = setter.WithExpires(&expires)
			}
			if err := setter.Do(actionCtx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

type resultCard struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// matchCard ищет в выдаче первую карточку, чьё название содержит искомое
// по подстроке без учёта регистра.
func matchCard(cards []resultCard, hotelName string) (resultCard, bool) {
	needle := strings.ToLower(strings.TrimSpace(hotelName))
	if needle == "" {
		return resultCard{}, false
	}
	for _, card := range cards {
		if strings.Contains(strings.ToLower(card.Name), needle) {
			return card, true
		}
	}
	return resultCard{}, false
}

var priceRegex = regexp.MustCompile(`\d[\d\s\x{00A0}\x{202F}]*(?:[.,]\d{1,2})?`)

// parsePrice извлекает числовой токен цены из текста карточки:
// "12 345 ₽", "12 345,00" и подобные варианты.
func parsePrice(text string) (float64, bool) {
	match := priceRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	normalized := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' || r == ' ' {
			return -1
		}
		if r == ',' {
			return '.'
		}
		return r
	}, match)
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
