// Package feeds is the business boundary of the brainsync backend. It defines
// the Service (sources, feeds, analysis, notes), the Analyzer (prompting an
// LLM and parsing its sectioned answer), the Store interface with its
// memstore and pgstore implementations, and the domain models served over
// the REST API.
package feeds
