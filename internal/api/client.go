// Package api はバックエンドの在庫管理REST APIのクライアントを提供する。
// すべての業務データはこのクライアント経由でバックエンドとやり取りされ、
// 保護されたエンドポイントにはベアラートークンを付与する。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/stockman/internal/metrics"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
)

// Client は在庫管理バックエンドAPIのクライアント。
// リトライは行わず、失敗は呼び出し元が通知に変換する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		collector:  collector,
		baseURL:    baseURL,
	}
}

// loginRequest はPOST /loginのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse はPOST /loginの成功レスポンス。
type loginResponse struct {
	Token string `json:"token"`
}

// registerRequest はPOST /usersのリクエストボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// categoryRequest はカテゴリー作成・更新のリクエストボディ。
type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProductInput は商品作成・更新の入力。
type ProductInput struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	CategoryID      int64   `json:"categoryId"`
	MinimumQuantity int     `json:"minimumQuantity"`
}

// MovementInput は在庫移動作成の入力。
type MovementInput struct {
	ProductID int64              `json:"productId"`
	Kind      model.MovementKind `json:"kind"`
	Quantity  int                `json:"quantity"`
	Note      string             `json:"note"`
}

// MovementFilter は在庫移動一覧のクエリパラメータ。
// 空文字列または"all"のフィールドはリクエストに含めない。
type MovementFilter struct {
	Kind       string
	CategoryID string
	Date       string
}

// errorResponse はバックエンドのエラーレスポンスボディ。
type errorResponse struct {
	Error string `json:"error"`
}

// Login は認証を行い、成功時にベアラートークンを返す。
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/login", "/login", "", loginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Register は新規ユーザーを登録する。
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	return c.do(ctx, http.MethodPost, "/users", "/users", "", registerRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, nil)
}

// ListCategories はカテゴリー一覧を取得する。
func (c *Client) ListCategories(ctx context.Context, token string) ([]model.Category, error) {
	var categories []model.Category
	if err := c.do(ctx, http.MethodGet, "/categories", "/categories", token, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategory は指定IDのカテゴリーを返す。
// バックエンドに単体取得エンドポイントがないため、一覧から探す。
// 見つからない場合は404のUpstreamErrorを返す。
func (c *Client) GetCategory(ctx context.Context, token string, id int64) (*model.Category, error) {
	categories, err := c.ListCategories(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, &model.UpstreamError{Status: http.StatusNotFound}
}

// CreateCategory はカテゴリーを作成する。
func (c *Client) CreateCategory(ctx context.Context, token, name, description string) error {
	return c.do(ctx, http.MethodPost, "/categories", "/categories", token, categoryRequest{
		Name:        name,
		Description: description,
	}, nil)
}

// UpdateCategory はカテゴリーを更新する。
func (c *Client) UpdateCategory(ctx context.Context, token string, id int64, name, description string) error {
	path := fmt.Sprintf("/categories/%d", id)
	return c.do(ctx, http.MethodPut, path, "/categories/{id}", token, categoryRequest{
		Name:        name,
		Description: description,
	}, nil)
}

// DeleteCategory はカテゴリーを削除する。
func (c *Client) DeleteCategory(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/categories/%d", id)
	return c.do(ctx, http.MethodDelete, path, "/categories/{id}", token, nil, nil)
}

// ListProducts は全商品の一覧を取得する。
// カテゴリーや価格による絞り込みはバックエンドに委ねず、呼び出し元が行う。
func (c *Client) ListProducts(ctx context.Context, token string) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, http.MethodGet, "/products", "/products", token, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct は指定IDの商品を返す。
// バックエンドに単体取得エンドポイントがないため、一覧から探す。
func (c *Client) GetProduct(ctx context.Context, token string, id int64) (*model.Product, error) {
	products, err := c.ListProducts(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, &model.UpstreamError{Status: http.StatusNotFound}
}

// CreateProduct は商品を作成する。
func (c *Client) CreateProduct(ctx context.Context, token string, input ProductInput) error {
	return c.do(ctx, http.MethodPost, "/products", "/products", token, input, nil)
}

// UpdateProduct は商品を更新する。
func (c *Client) UpdateProduct(ctx context.Context, token string, id int64, input ProductInput) error {
	path := fmt.Sprintf("/products/%d", id)
	return c.do(ctx, http.MethodPut, path, "/products/{id}", token, input, nil)
}

// DeleteProduct は商品を削除する。
func (c *Client) DeleteProduct(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/products/%d", id)
	return c.do(ctx, http.MethodDelete, path, "/products/{id}", token, nil, nil)
}

// ListMovements は在庫移動の一覧を取得する。
// フィルタのうち空または"all"のものはクエリに含めない。
func (c *Client) ListMovements(ctx context.Context, token string, filter MovementFilter) ([]model.Movement, error) {
	q := url.Values{}
	if filter.Kind != "" && filter.Kind != model.FilterAll {
		q.Set("kind", filter.Kind)
	}
	if filter.CategoryID != "" && filter.CategoryID != model.FilterAll {
		q.Set("categoryId", filter.CategoryID)
	}
	if filter.Date != "" {
		q.Set("date", filter.Date)
	}

	path := "/movements"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var movements []model.Movement
	if err := c.do(ctx, http.MethodGet, path, "/movements", token, nil, &movements); err != nil {
		return nil, err
	}
	return movements, nil
}

// CreateMovement は在庫移動を記録する。
// 在庫数の増減はバックエンドの責務であり、クライアント側では計算しない。
func (c *Client) CreateMovement(ctx context.Context, token string, input MovementInput) error {
	return c.do(ctx, http.MethodPost, "/movements", "/movements", token, input, nil)
}

// do はバックエンドAPIへのリクエストを実行する共通処理。
// endpointはメトリクスのラベルに使う正規化済みパス（IDを含まない）。
// 失敗の分類:
//   - 接続自体の失敗 → model.ErrUpstreamUnreachable
//   - 非2xxでボディが{"error": ...} → メッセージを保持したUpstreamError
//   - 非2xxでボディがパース不能 → メッセージ空のUpstreamError
func (c *Client) do(ctx context.Context, method, path, endpoint, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.collector.RecordUpstreamLatency(endpoint, time.Since(start))

	if err != nil {
		c.collector.RecordUpstreamUnreachable(endpoint)
		c.logger.Error("バックエンドAPIへの接続に失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	c.collector.RecordUpstreamRequest(endpoint, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("バックエンドAPIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
		)

		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			// ボディがパース不能な場合は呼び出し元がフォールバック文言を補う
			return &model.UpstreamError{Status: resp.StatusCode}
		}
		return &model.UpstreamError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			c.logger.Error("レスポンスJSONのパースに失敗しました",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}

	return nil
}
