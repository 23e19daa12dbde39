package github

import (
	"encoding/json"
	"fmt"
)

// searchQuery is the one query shape this crawler issues. The rateLimit
// block rides along with every page so the client can pace itself; the
// search is GitHub's default ordering over repositories with more than one
// star.
const searchQuery = `query ($cursor: String, $pageSize: Int!) {
  rateLimit {
    cost
    remaining
    resetAt
  }
  search(query: "stars:>1", type: REPOSITORY, first: $pageSize, after: $cursor) {
    pageInfo {
      endCursor
      hasNextPage
    }
    nodes {
      ... on Repository {
        id
        name
        url
        stargazerCount
        owner {
          login
        }
      }
    }
  }
}`

// graphqlRequest is the POST envelope GitHub's GraphQL endpoint expects.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Response is a parsed GraphQL response envelope. Data is left raw so the
// caller decodes only the shape it asked for; Errors may be populated even
// on a 200.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ResponseError `json:"errors,omitempty"`
}

// ResponseError is one entry of the GraphQL errors array.
type ResponseError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

func (e ResponseError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return e.Message
}

// searchData is the payload shape of searchQuery.
type searchData struct {
	RateLimit *quotaPayload `json:"rateLimit"`
	Search    *searchResult `json:"search"`
}

type quotaPayload struct {
	Cost      int    `json:"cost"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"resetAt"`
}

type searchResult struct {
	PageInfo struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pageInfo"`
	Nodes []repositoryNode `json:"nodes"`
}

type repositoryNode struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	StargazerCount int    `json:"stargazerCount"`
	Owner          struct {
		Login string `json:"login"`
	} `json:"owner"`
}
