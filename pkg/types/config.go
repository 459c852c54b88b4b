package types

import "time"

// HTTPConfig holds shared HTTP settings used by every external service client.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Retries is the number of attempts per request (default 3).
	Retries int `json:"retries" yaml:"retries"`

	// BackoffBase is the base delay for exponential backoff between attempts.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// RateLimit caps requests per second to a single service. Zero disables it.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
}

// ServiceURLs holds the base URLs of the external services.
type ServiceURLs struct {
	// PubTator is the annotation service base, e.g.
	// https://www.ncbi.nlm.nih.gov/research/pubtator3-api/publications.
	PubTator string `json:"pubtator" yaml:"pubtator"`

	// UniProt is the protein knowledge base REST root, e.g. https://rest.uniprot.org.
	UniProt string `json:"uniprot" yaml:"uniprot"`

	// EUtils is the NCBI E-utilities base, e.g.
	// https://eutils.ncbi.nlm.nih.gov/entrez/eutils.
	EUtils string `json:"eutils" yaml:"eutils"`
}

// DatasetConfig locates the predictions table and its key columns.
type DatasetConfig struct {
	// Path is the SQLite dataset file.
	Path string `json:"db" yaml:"db"`

	// Table is the predictions table name (default "predictions").
	Table string `json:"table" yaml:"table"`

	// PMIDColumn holds the document identifier (default "PMID").
	PMIDColumn string `json:"pmid_col" yaml:"pmid_col"`

	// AccessionColumn holds protein accessions; rows where it is empty are
	// unresolved (default "UniProtKB_accessions").
	AccessionColumn string `json:"ac_col" yaml:"ac_col"`
}

// EnrichConfig holds settings for the annotation → accession enrichment pass.
type EnrichConfig struct {
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Batch is the number of documents per annotation request (default 50).
	Batch int `json:"batch" yaml:"batch"`

	// Delay is the pause between annotation requests.
	Delay time.Duration `json:"sleep" yaml:"sleep"`

	// Limit stops after this many documents; zero means no limit.
	Limit int `json:"limit" yaml:"limit"`

	// CommitEvery flushes staged updates once this many are pending (default 200).
	CommitEvery int `json:"commit_every" yaml:"commit_every"`

	// CacheDB is the cache SQLite file.
	CacheDB string `json:"cache_db" yaml:"cache_db"`

	// MappingBatch is the number of gene IDs per mapping job (default 200).
	MappingBatch int `json:"uniprot_batch" yaml:"uniprot_batch"`

	// DetailBatch is the number of accessions per detail query (default 50).
	DetailBatch int `json:"detail_batch" yaml:"detail_batch"`

	// MappingDelay is the pause between protein-database requests.
	MappingDelay time.Duration `json:"uniprot_sleep" yaml:"uniprot_sleep"`

	// StoreGeneMap writes raw annotation gene IDs to a side table.
	StoreGeneMap bool `json:"store_gene_map" yaml:"store_gene_map"`

	// GeneMapTable names the side table (default "pubtator_gene_map").
	GeneMapTable string `json:"gene_map_table" yaml:"gene_map_table"`
}

// BiblioConfig holds settings for the bibliographic metadata pass.
type BiblioConfig struct {
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Batch is the number of documents per ESummary request (default 200).
	Batch int `json:"batch" yaml:"batch"`

	// Delay is the pause after each ESummary request (default 340ms).
	Delay time.Duration `json:"sleep" yaml:"sleep"`

	// Limit stops after this many documents; zero means no limit.
	Limit int `json:"limit" yaml:"limit"`

	// CacheDB is the cache SQLite file.
	CacheDB string `json:"cache_db" yaml:"cache_db"`

	// WithText also fills empty Title and Abstract from annotation passages.
	WithText bool `json:"with_text" yaml:"with_text"`

	// APIKey and Email are passed to E-utilities when set.
	APIKey string `json:"-" yaml:"-"`
	Email  string `json:"-" yaml:"-"`
}

// NamesConfig holds settings for the parallel protein-name pass.
type NamesConfig struct {
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Workers is the number of concurrent lookups (default 10).
	Workers int `json:"workers" yaml:"workers"`

	// CheckpointInterval applies results and snapshots the cache every N rows
	// (default 1000).
	CheckpointInterval int `json:"checkpoint_interval" yaml:"checkpoint_interval"`

	// CachePath is the JSON snapshot file; a ".gz" suffix enables compression.
	CachePath string `json:"cache" yaml:"cache"`
}

// GenesConfig holds settings for the gene-name accession pass.
type GenesConfig struct {
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Batch is the number of gene names per search (default 50).
	Batch int `json:"batch" yaml:"batch"`

	// Delay is the pause after each search (default 400ms).
	Delay time.Duration `json:"sleep" yaml:"sleep"`

	// CacheDB is the cache SQLite file.
	CacheDB string `json:"cache_db" yaml:"cache_db"`
}

// MergeConfig holds settings for merging prediction rows into the dataset.
type MergeConfig struct {
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Input is a JSONL file of Prediction records.
	Input string `json:"input" yaml:"input"`

	// AccessionPrefix prefixes every generated row accession (default "SOORENA").
	AccessionPrefix string `json:"ac_prefix" yaml:"ac_prefix"`
}

// Config groups every command's configuration for `pubenrich config`.
type Config struct {
	HTTP     HTTPConfig   `json:"http" yaml:"http"`
	Services ServiceURLs  `json:"services" yaml:"services"`
	Enrich   EnrichConfig `json:"enrich" yaml:"enrich"`
	Biblio   BiblioConfig `json:"biblio" yaml:"biblio"`
	Names    NamesConfig  `json:"names" yaml:"names"`
	Genes    GenesConfig  `json:"genes" yaml:"genes"`
	Merge    MergeConfig  `json:"merge" yaml:"merge"`
}
