/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"github.com/wacul/ptr"
)

const (
	CollectionWithdrawals      = "withdrawals"
	CollectionLedgerEntries    = "ledger_entries"
	CollectionMerchantBalances = "merchant_balances"
	CollectionSecurityAudits   = "security_audits"
)

// CollectionConfig describes how documents of one collection are
// normalized before indexing.
type CollectionConfig struct {
	Schema        *api.CollectionSchema
	IDField       string
	TimeFields    []string
	DecimalFields []string
}

var collectionConfigs = map[string]CollectionConfig{
	CollectionWithdrawals: {
		Schema:        getWithdrawalSchema(),
		IDField:       "withdrawal_id",
		TimeFields:    []string{"created_at", "updated_at"},
		DecimalFields: []string{"amount", "fee", "net_amount"},
	},
	CollectionLedgerEntries: {
		Schema:        getLedgerEntrySchema(),
		IDField:       "entry_id",
		TimeFields:    []string{"created_at"},
		DecimalFields: []string{"amount", "running_balance"},
	},
	CollectionMerchantBalances: {
		Schema:        getMerchantBalanceSchema(),
		IDField:       "balance_id",
		TimeFields:    []string{"created_at", "updated_at"},
		DecimalFields: []string{"available_amount", "pending_amount"},
	},
	CollectionSecurityAudits: {
		Schema:     getSecurityAuditSchema(),
		IDField:    "audit_id",
		TimeFields: []string{"created_at"},
	},
}

// TypesenseClient wraps the Typesense client used for indexing and
// querying.
type TypesenseClient struct {
	Client *typesense.Client
}

// NewTypesenseClient initializes a client against the first host with
// circuit breaking tuned for a search sidecar that may restart.
func NewTypesenseClient(apiKey string, hosts []string) *TypesenseClient {
	client := typesense.NewClient(
		typesense.WithServer(hosts[0]),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
		typesense.WithCircuitBreakerMaxRequests(50),
		typesense.WithCircuitBreakerInterval(2*time.Minute),
		typesense.WithCircuitBreakerTimeout(1*time.Minute),
	)
	return &TypesenseClient{Client: client}
}

// EnsureCollectionsExist creates any collection that is missing.
func (t *TypesenseClient) EnsureCollectionsExist(ctx context.Context) error {
	for name, config := range collectionConfigs {
		if _, err := t.CreateCollection(ctx, config.Schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// CreateCollection creates a collection, treating "already exists" as
// success.
func (t *TypesenseClient) CreateCollection(ctx context.Context, schema *api.CollectionSchema) (*api.CollectionResponse, error) {
	resp, err := t.Client.Collections().Create(ctx, schema)
	switch {
	case err == nil:
		return resp, nil
	case strings.Contains(err.Error(), "already exists"):
		return nil, nil
	default:
		return nil, err
	}
}

// Search runs a query against one collection.
func (t *TypesenseClient) Search(ctx context.Context, collection string, searchParams *api.SearchCollectionParams) (*api.SearchResult, error) {
	return t.Client.Collection(collection).Documents().Search(ctx, searchParams)
}

// MultiSearch runs several search queries in a single round trip.
func (t *TypesenseClient) MultiSearch(ctx context.Context, searchRequests api.MultiSearchSearchesParameter) (*api.MultiSearchResult, error) {
	return t.Client.MultiSearch.Perform(ctx, &api.MultiSearchParams{}, searchRequests)
}

// HandleNotification normalizes a changed row and upserts it into the
// collection named by table. Rows arrive both from database notify
// triggers and from reindex batches.
func (t *TypesenseClient) HandleNotification(ctx context.Context, table string, data map[string]interface{}) error {
	config, ok := collectionConfigs[table]
	if !ok {
		return fmt.Errorf("unknown collection: %s", table)
	}

	if err := t.processMetadata(data); err != nil {
		return err
	}
	t.convertDecimalFields(config, data)
	t.ensureSchemaFields(config, data)
	t.normalizeTimeFields(config, data)

	return t.upsertDocument(ctx, config, table, data)
}

// processMetadata coerces meta_data into the shape the object-typed
// schemas accept.
func (t *TypesenseClient) processMetadata(data map[string]interface{}) error {
	raw, ok := data["meta_data"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case nil:
		// Object-typed fields reject null.
		data["meta_data"] = map[string]interface{}{}
	case map[string]interface{}:
		data["meta_data"] = v
	default:
		// Collections created before the object schema indexed
		// metadata as a JSON string.
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal meta_data: %w", err)
		}
		data["meta_data"] = string(encoded)
	}
	return nil
}

// convertDecimalFields normalizes money fields to plain decimal strings.
// Documents arrive either from the model layer, where amounts are
// decimal.Decimal, or from database notifications, where numeric columns
// decode as float64.
func (t *TypesenseClient) convertDecimalFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.DecimalFields {
		t.convertDecimalField(data, field)
	}
}

func (t *TypesenseClient) convertDecimalField(data map[string]interface{}, field string) {
	switch v := data[field].(type) {
	case decimal.Decimal:
		data[field] = v.String()
	case float64:
		data[field] = decimal.NewFromFloat(v).String()
	}
}

// ensureSchemaFields fills missing required fields with type defaults
// and strips empty strings from optional ones so their absence stays
// meaningful.
func (t *TypesenseClient) ensureSchemaFields(config CollectionConfig, data map[string]interface{}) {
	optional := make(map[string]bool)
	for _, field := range config.Schema.Fields {
		if field.Optional != nil && *field.Optional {
			optional[field.Name] = true
			continue
		}
		if _, ok := data[field.Name]; !ok {
			data[field.Name] = defaultForType(field.Type)
		}
	}

	for key, value := range data {
		if !optional[key] {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			delete(data, key)
		}
	}
}

// normalizeTimeFields converts time fields to Unix timestamps.
func (t *TypesenseClient) normalizeTimeFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.TimeFields {
		value, ok := data[field]
		if !ok {
			continue
		}
		if _, alreadyUnix := value.(int64); alreadyUnix {
			continue
		}
		data[field] = unixTime(value)
	}
}

// unixTime coerces whatever shape a timestamp arrived in. Unparseable
// values index as now rather than failing the document.
func unixTime(value interface{}) int64 {
	switch v := value.(type) {
	case time.Time:
		return v.Unix()
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed.Unix()
		}
	}
	return time.Now().Unix()
}

// upsertDocument writes the document, pinning the Typesense id to the
// domain id so repeated notifications update in place.
func (t *TypesenseClient) upsertDocument(ctx context.Context, config CollectionConfig, table string, data map[string]interface{}) error {
	if id, ok := data[config.IDField].(string); ok && id != "" {
		data["id"] = id
	}

	if _, err := t.Client.Collection(table).Documents().Upsert(ctx, data); err != nil {
		return fmt.Errorf("failed to upsert document in Typesense: %w", err)
	}
	return nil
}

// MigrateTypeSenseSchema adds fields the latest schema has that the
// live collection is missing. Typesense cannot alter field types in
// place, so only additions are applied.
func (t *TypesenseClient) MigrateTypeSenseSchema(ctx context.Context, collectionName string) error {
	config, ok := collectionConfigs[collectionName]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collectionName)
	}

	collection := t.Client.Collection(collectionName)
	current, err := collection.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve current schema: %w", err)
	}

	for _, field := range missingFields(current.Fields, config.Schema.Fields) {
		update := &api.CollectionUpdateSchema{
			Fields: []api.Field{field},
		}
		if _, err := collection.Update(ctx, update); err != nil {
			return fmt.Errorf("failed to add field %s: %w", field.Name, err)
		}
		logrus.Infof("Added new field %s to collection %s", field.Name, collectionName)
	}

	return nil
}

// missingFields returns the fields present in latest but absent from
// current.
func missingFields(current, latest []api.Field) []api.Field {
	existing := make(map[string]bool, len(current))
	for _, field := range current {
		existing[field.Name] = true
	}

	var missing []api.Field
	for _, field := range latest {
		if !existing[field.Name] {
			missing = append(missing, field)
		}
	}
	return missing
}

// toMap flattens a document into the generic shape HandleNotification
// expects. Decimal amounts come out as strings, which is what the
// schemas declare for money fields.
func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// defaultForType returns the zero document value for a Typesense field
// type.
func defaultForType(fieldType string) interface{} {
	switch fieldType {
	case "string":
		return ""
	case "int32", "int64":
		return int64(0)
	case "float":
		return float64(0)
	case "bool":
		return false
	case "string[]":
		return []string{}
	default:
		return nil
	}
}

// getWithdrawalSchema returns the schema for the "withdrawals" collection.
func getWithdrawalSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: CollectionWithdrawals,
		Fields: []api.Field{
			{Name: "withdrawal_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "tenant_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "amount", Type: "string", Facet: ptr.Bool(true)},
			{Name: "fee", Type: "string", Facet: ptr.Bool(true)},
			{Name: "net_amount", Type: "string", Facet: ptr.Bool(true)},
			{Name: "currency", Type: "string", Facet: ptr.Bool(true)},
			{Name: "bank_account_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "status", Type: "string", Facet: ptr.Bool(true)},
			{Name: "provider_transaction_id", Type: "string", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
			{Name: "error_message", Type: "string", Optional: ptr.Bool(true)},
			{Name: "failure_reason", Type: "string", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
			{Name: "risk_score", Type: "int32", Facet: ptr.Bool(true)},
			{Name: "created_at", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "updated_at", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "meta_data", Type: "object", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
		},
		DefaultSortingField: ptr.String("created_at"),
		EnableNestedFields:  ptr.Bool(true),
	}
}

// getLedgerEntrySchema returns the schema for the "ledger_entries" collection.
func getLedgerEntrySchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: CollectionLedgerEntries,
		Fields: []api.Field{
			{Name: "entry_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "tenant_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "seq", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "entry_type", Type: "string", Facet: ptr.Bool(true)},
			{Name: "source", Type: "string", Facet: ptr.Bool(true)},
			{Name: "reference_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "amount", Type: "string", Facet: ptr.Bool(true)},
			{Name: "running_balance", Type: "string", Facet: ptr.Bool(true)},
			{Name: "currency", Type: "string", Facet: ptr.Bool(true)},
			{Name: "description", Type: "string", Facet: ptr.Bool(true)},
			{Name: "created_at", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "meta_data", Type: "object", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
		},
		DefaultSortingField: ptr.String("created_at"),
		EnableNestedFields:  ptr.Bool(true),
	}
}

// getMerchantBalanceSchema returns the schema for the "merchant_balances" collection.
func getMerchantBalanceSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: CollectionMerchantBalances,
		Fields: []api.Field{
			{Name: "balance_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "tenant_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "available_amount", Type: "string", Facet: ptr.Bool(true)},
			{Name: "pending_amount", Type: "string", Facet: ptr.Bool(true)},
			{Name: "currency", Type: "string", Facet: ptr.Bool(true)},
			{Name: "created_at", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "updated_at", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "meta_data", Type: "object", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
		},
		DefaultSortingField: ptr.String("created_at"),
		EnableNestedFields:  ptr.Bool(true),
	}
}

// getSecurityAuditSchema returns the schema for the "security_audits" collection.
func getSecurityAuditSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: CollectionSecurityAudits,
		Fields: []api.Field{
			{Name: "audit_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "tenant_id", Type: "string", Facet: ptr.Bool(true)},
			{Name: "operation", Type: "string", Facet: ptr.Bool(true)},
			{Name: "decision", Type: "string", Facet: ptr.Bool(true)},
			{Name: "score", Type: "int32", Facet: ptr.Bool(true)},
			{Name: "factors", Type: "object[]", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
			{Name: "ip_address", Type: "string", Facet: ptr.Bool(true)},
			{Name: "user_agent", Type: "string", Optional: ptr.Bool(true)},
			{Name: "success", Type: "bool", Facet: ptr.Bool(true)},
			{Name: "created_at", Type: "int64", Facet: ptr.Bool(true)},
			{Name: "meta_data", Type: "object", Facet: ptr.Bool(true), Optional: ptr.Bool(true)},
		},
		DefaultSortingField: ptr.String("created_at"),
		EnableNestedFields:  ptr.Bool(true),
	}
}
