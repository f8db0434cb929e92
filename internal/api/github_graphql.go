package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/internal/models"
	"golang.org/x/oauth2"
)

// GraphQLClient represents a client for the GitHub GraphQL API
type GraphQLClient struct {
	client *githubv4.Client
}

// NewGraphQLClient creates a new GraphQL client authenticated by ts
func NewGraphQLClient(ts oauth2.TokenSource) *GraphQLClient {
	return &GraphQLClient{client: githubv4.NewClient(NewHTTPClient(ts))}
}

// NewEnterpriseGraphQLClient creates a GraphQL client for a custom endpoint
func NewEnterpriseGraphQLClient(url string, httpClient *http.Client) *GraphQLClient {
	return &GraphQLClient{client: githubv4.NewEnterpriseClient(url, httpClient)}
}

// RateLimit is the GraphQL rate limit budget of the authenticated user
type RateLimit struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Viewer gets the user the token belongs to
func (c *GraphQLClient) Viewer(ctx context.Context) (*models.User, *RateLimit, error) {
	var query struct {
		Viewer struct {
			Login     githubv4.String
			AvatarURL githubv4.String
		}
		RateLimit struct {
			Limit     githubv4.Int
			Remaining githubv4.Int
			ResetAt   githubv4.DateTime
		}
	}

	if err := c.client.Query(ctx, &query, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to query viewer: %w", err)
	}

	limit := &RateLimit{
		Limit:     int(query.RateLimit.Limit),
		Remaining: int(query.RateLimit.Remaining),
		ResetAt:   query.RateLimit.ResetAt.Time,
	}
	if limit.Remaining < 1000 {
		logrus.WithFields(logrus.Fields{
			"remaining": limit.Remaining,
			"limit":     limit.Limit,
			"reset_at":  limit.ResetAt.Format(time.RFC3339),
		}).Warn("GraphQL rate limit running low")
	}

	return &models.User{
		Login:     string(query.Viewer.Login),
		AvatarURL: string(query.Viewer.AvatarURL),
	}, limit, nil
}
