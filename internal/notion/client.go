package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/notionnext/pagecache/internal/blocks"
	"github.com/notionnext/pagecache/internal/config"
	"github.com/notionnext/pagecache/internal/logging"
)

const (
	// maxChunks 限制单页 loadPageChunk 的分页次数，防止上游返回异常游标时无限循环。
	maxChunks = 50
	// maxMissingRounds 限制补抓缺失块的轮数，补抓到的块可能继续引用新的子块。
	maxMissingRounds = 5

	errorBodyLimit = 512
)

// Client 访问 Notion 私有 API。零值不可用，需通过 NewClient 构造。
type Client struct {
	baseURL    string
	token      string
	activeUser string
	chunkLimit int
	batchSize  int
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient 根据 NotionConfig 构建客户端；httpClient 为 nil 时使用 http.DefaultClient。
func NewClient(cfg config.NotionConfig, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	chunkLimit := cfg.ChunkLimit
	if chunkLimit <= 0 {
		chunkLimit = 100
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.APIBase, "/"),
		token:      cfg.Token,
		activeUser: cfg.ActiveUser,
		chunkLimit: chunkLimit,
		batchSize:  batchSize,
		httpClient: httpClient,
		logger:     logging.OrDiscard(logger),
	}
}

type cursor struct {
	Stack [][]json.RawMessage `json:"stack"`
}

type loadPageChunkRequest struct {
	PageID          string `json:"pageId"`
	Limit           int    `json:"limit"`
	Cursor          cursor `json:"cursor"`
	ChunkNumber     int    `json:"chunkNumber"`
	VerticalColumns bool   `json:"verticalColumns"`
}

type loadPageChunkResponse struct {
	RecordMap *blocks.RecordMap `json:"recordMap"`
	Cursor    cursor            `json:"cursor"`
}

type recordPointer struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

type syncRequest struct {
	Pointer recordPointer `json:"pointer"`
	Version int           `json:"version"`
}

type syncRecordValuesRequest struct {
	Requests []syncRequest `json:"requests"`
}

type syncRecordValuesResponse struct {
	RecordMap *blocks.RecordMap `json:"recordMap"`
}

// GetPage 分页拉取页面全部块，并补抓 content 中引用但响应未包含的块。
func (c *Client) GetPage(ctx context.Context, pageID string) (*blocks.RecordMap, error) {
	id, err := ParsePageID(pageID)
	if err != nil {
		return nil, err
	}

	result := blocks.NewRecordMap()
	req := loadPageChunkRequest{
		PageID: ToUUID(id),
		Limit:  c.chunkLimit,
		Cursor: cursor{Stack: [][]json.RawMessage{}},
	}
	for chunk := 0; chunk < maxChunks; chunk++ {
		req.ChunkNumber = chunk
		var resp loadPageChunkResponse
		if err := c.post(ctx, "loadPageChunk", req, &resp); err != nil {
			return nil, err
		}
		result.Merge(resp.RecordMap)
		if len(resp.Cursor.Stack) == 0 {
			break
		}
		req.Cursor = resp.Cursor
	}

	for round := 0; round < maxMissingRounds; round++ {
		missing := missingBlockIDs(result)
		if len(missing) == 0 {
			break
		}
		fetched, err := c.GetBlocks(ctx, missing)
		if err != nil {
			return nil, err
		}
		before := result.Block.Len()
		result.Merge(fetched)
		if result.Block.Len() == before {
			// 上游不再返回新块，继续请求没有意义
			break
		}
	}
	return result, nil
}

// GetBlocks 按 batchSize 顺序分批调用 syncRecordValues，合并各批返回的块。
func (c *Client) GetBlocks(ctx context.Context, ids []string) (*blocks.RecordMap, error) {
	result := blocks.NewRecordMap()
	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		req := syncRecordValuesRequest{Requests: make([]syncRequest, 0, len(batch))}
		for _, id := range batch {
			req.Requests = append(req.Requests, syncRequest{
				Pointer: recordPointer{Table: "block", ID: id},
				Version: -1,
			})
		}

		began := time.Now()
		var resp syncRecordValuesResponse
		if err := c.post(ctx, "syncRecordValues", req, &resp); err != nil {
			return nil, err
		}
		c.logger.WithFields(logrus.Fields{
			"action":     "fetch_blocks",
			"batch":      len(batch),
			"total":      len(ids),
			"elapsed_ms": time.Since(began).Milliseconds(),
		}).Debug("补抓缺失块")
		result.Merge(resp.RecordMap)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: "token_v2", Value: c.token})
	}
	if c.activeUser != "" {
		req.Header.Set("x-notion-active-user-header", c.activeUser)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notion %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// missingBlockIDs 按出现顺序收集 content 中引用但尚未抓取的块 id。
func missingBlockIDs(rm *blocks.RecordMap) []string {
	seen := make(map[string]struct{})
	var missing []string
	rm.Block.Range(func(_ string, rec *blocks.Record) bool {
		if rec == nil || rec.Value == nil {
			return true
		}
		for _, child := range rec.Value.Content {
			if _, ok := rm.Block.Get(child); ok {
				continue
			}
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			missing = append(missing, child)
		}
		return true
	})
	return missing
}
