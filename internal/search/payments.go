// internal/search/payments.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// PaymentMapping is the index mapping for payment documents.
const PaymentMapping = `{
  "mappings": {
    "properties": {
      "id":              {"type": "keyword"},
      "applicationId":   {"type": "keyword"},
      "userId":          {"type": "keyword"},
      "transactionCode": {"type": "keyword"},
      "phoneNumber":     {"type": "keyword"},
      "amount":          {"type": "long"},
      "status":          {"type": "keyword"},
      "warnings":        {"type": "text"},
      "applicantName":   {"type": "text"},
      "createdAt":       {"type": "date"},
      "updatedAt":       {"type": "date"}
    }
  }
}`

// PaymentDocument is the denormalized search view of a payment attempt.
type PaymentDocument struct {
	ID              string                     `json:"id"`
	ApplicationID   string                     `json:"applicationId"`
	UserID          string                     `json:"userId"`
	ApplicantName   string                     `json:"applicantName,omitempty"`
	TransactionCode string                     `json:"transactionCode"`
	PhoneNumber     string                     `json:"phoneNumber"`
	Amount          int64                      `json:"amount"`
	Status          models.PaymentRecordStatus `json:"status"`
	Warnings        []string                   `json:"warnings,omitempty"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

func DocumentFromPayment(p *models.Payment, applicantName string) PaymentDocument {
	return PaymentDocument{
		ID:              p.ID,
		ApplicationID:   p.ApplicationID,
		UserID:          p.UserID,
		ApplicantName:   applicantName,
		TransactionCode: p.TransactionCode,
		PhoneNumber:     p.PhoneNumber,
		Amount:          p.Amount,
		Status:          p.Status,
		Warnings:        p.Warnings,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// PaymentQuery filters the admin payment search. Text matches codes, phone
// numbers, applicant names and warnings.
type PaymentQuery struct {
	Text   string                     `json:"q"`
	Status models.PaymentRecordStatus `json:"status"`
	From   int                        `json:"from"`
	Size   int                        `json:"size"`
}

type PaymentSearchResult struct {
	Total int64             `json:"total"`
	Hits  []PaymentDocument `json:"hits"`
	Took  int               `json:"took"`
}

type PaymentIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewPaymentIndex(client *elasticsearch.Client, index string, log logger.Logger) *PaymentIndex {
	return &PaymentIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "payment-index", "index": index}),
	}
}

// Upsert writes doc under its payment id, replacing older versions.
func (x *PaymentIndex) Upsert(ctx context.Context, doc PaymentDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewIndexFailedError(x.index, fmt.Errorf("%s: %s", res.Status(), readError(res.Body)))
	}
	return nil
}

func (x *PaymentIndex) Search(ctx context.Context, q PaymentQuery) (*PaymentSearchResult, error) {
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 20
	}
	if q.From < 0 {
		q.From = 0
	}
	body, err := json.Marshal(BuildPaymentQuery(q))
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		From:  &q.From,
		Size:  &q.Size,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(x.index, fmt.Errorf("%s: %s", res.Status(), readError(res.Body)))
	}

	var raw struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source PaymentDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(x.index, err)
	}

	out := &PaymentSearchResult{Total: raw.Hits.Total.Value, Took: raw.Took, Hits: make([]PaymentDocument, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	return out, nil
}

// BuildPaymentQuery builds the bool query for q, newest first.
func BuildPaymentQuery(q PaymentQuery) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		should := []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"transactionCode": strings.ToUpper(text)}},
			map[string]interface{}{"term": map[string]interface{}{"phoneNumber": text}},
			map[string]interface{}{"term": map[string]interface{}{"applicationId": text}},
			map[string]interface{}{"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"applicantName^2", "warnings"},
			}},
		}
		must = append(must, map[string]interface{}{
			"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
		})
	}
	if q.Status != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"status": string(q.Status)}})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}

func readError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
