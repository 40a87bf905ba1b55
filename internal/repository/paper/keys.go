package paper

import "github.com/kailas-cloud/paperfeed/internal/domain"

// Key layout:
//
//	paperfeed:paper:{id}               hash   paper record
//	paperfeed:papers:published         zset   id -> publish time (unix seconds, 0 when unknown)
//	paperfeed:user:{uid}:searches      list   JSON search records, newest first
//	paperfeed:user:{uid}:views         zset   paper id -> last view time (unix seconds)
//	paperfeed:user:{uid}:view_counts   hash   paper id -> view count
const (
	paperPrefix      = domain.KeyPrefix + "paper:"
	publishedKey     = domain.KeyPrefix + "papers:published"
	userPrefix       = domain.KeyPrefix + "user:"
	searchesSuffix   = ":searches"
	viewsSuffix      = ":views"
	viewCountsSuffix = ":view_counts"
)

func paperKey(id string) string         { return paperPrefix + id }
func searchesKey(userID string) string  { return userPrefix + userID + searchesSuffix }
func viewsKey(userID string) string     { return userPrefix + userID + viewsSuffix }
func viewCountKey(userID string) string { return userPrefix + userID + viewCountsSuffix }
