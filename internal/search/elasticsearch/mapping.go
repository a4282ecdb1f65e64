package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for product documents.
const DefaultIndexName = "storefront_products"

// buildIndexMapping returns the full JSON mapping for the products index,
// including an edge-ngram analyzer for autocomplete on product names.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":           { "type": "keyword" },
      "name":         { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "slug":         { "type": "keyword" },
      "description":  { "type": "text" },
      "price":        { "type": "long" },
      "currency":     { "type": "keyword" },
      "decade":       { "type": "keyword" },
      "style":        { "type": "keyword" },
      "condition":    { "type": "keyword" },
      "color":        { "type": "keyword" },
      "sizes":        { "type": "keyword" },
      "rating":       { "type": "double" },
      "review_count": { "type": "integer" },
      "in_stock":     { "type": "boolean" },
      "image_url":    { "type": "keyword", "index": false },
      "created_at":   { "type": "date" },
      "updated_at":   { "type": "date" }
    }
  }
}`
}
