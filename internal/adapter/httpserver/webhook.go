package httpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bkyoung/review-agent/internal/domain"
)

// Typed views of the GitHub payload subset this server consumes. GitHub
// sends far more; unknown fields are ignored by the decoder.

type repositoryPayload struct {
	FullName string `json:"full_name"`
}

type userPayload struct {
	Login string `json:"login"`
}

type labelPayload struct {
	Name string `json:"name"`
}

type pullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Title string      `json:"title"`
		Body  string      `json:"body"`
		User  userPayload `json:"user"`
		Head  struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository repositoryPayload `json:"repository"`
}

type issuesEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number int            `json:"number"`
		Title  string         `json:"title"`
		Body   string         `json:"body"`
		User   userPayload    `json:"user"`
		Labels []labelPayload `json:"labels"`
	} `json:"issue"`
	Label      *labelPayload     `json:"label"`
	Repository repositoryPayload `json:"repository"`
}

type issueCommentEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	} `json:"issue"`
	Comment struct {
		Body string      `json:"body"`
		User userPayload `json:"user"`
	} `json:"comment"`
	Repository repositoryPayload `json:"repository"`
}

// mapEvent translates a GitHub event into a task. The second return is
// false for events the agent deliberately does not act on (wrong action,
// missing trigger label, no mention command); those are acknowledged but
// never dispatched.
func (s *Server) mapEvent(event string, body []byte) (domain.Task, bool, error) {
	switch event {
	case "pull_request":
		return s.mapPullRequest(body)
	case "issues":
		return s.mapIssues(body)
	case "issue_comment":
		return s.mapIssueComment(body)
	}
	return domain.Task{}, false, nil
}

func (s *Server) mapPullRequest(body []byte) (domain.Task, bool, error) {
	var event pullRequestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.Task{}, false, fmt.Errorf("decode pull_request event: %w", err)
	}

	switch event.Action {
	case "opened", "synchronize", "reopened":
	default:
		return domain.Task{}, false, nil
	}

	return domain.Task{
		Kind:       domain.TaskKindReview,
		Repository: event.Repository.FullName,
		Branch:     event.PullRequest.Head.Ref,
		Number:     event.Number,
		Title:      event.PullRequest.Title,
		Body:       event.PullRequest.Body,
		Author:     event.PullRequest.User.Login,
	}, true, nil
}

func (s *Server) mapIssues(body []byte) (domain.Task, bool, error) {
	var event issuesEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.Task{}, false, fmt.Errorf("decode issues event: %w", err)
	}

	if s.triggerLabel == "" {
		return domain.Task{}, false, nil
	}

	triggered := false
	switch event.Action {
	case "opened":
		for _, label := range event.Issue.Labels {
			if label.Name == s.triggerLabel {
				triggered = true
				break
			}
		}
	case "labeled":
		triggered = event.Label != nil && event.Label.Name == s.triggerLabel
	}
	if !triggered {
		return domain.Task{}, false, nil
	}

	return domain.Task{
		Kind:       domain.TaskKindFix,
		Repository: event.Repository.FullName,
		Number:     event.Issue.Number,
		Title:      event.Issue.Title,
		Body:       event.Issue.Body,
		Author:     event.Issue.User.Login,
	}, true, nil
}

func (s *Server) mapIssueComment(body []byte) (domain.Task, bool, error) {
	var event issueCommentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.Task{}, false, fmt.Errorf("decode issue_comment event: %w", err)
	}

	if s.mentionCommand == "" || event.Action != "created" {
		return domain.Task{}, false, nil
	}
	if !strings.Contains(event.Comment.Body, s.mentionCommand) {
		return domain.Task{}, false, nil
	}

	return domain.Task{
		Kind:       domain.TaskKindRespond,
		Repository: event.Repository.FullName,
		Number:     event.Issue.Number,
		Title:      event.Issue.Title,
		Author:     event.Comment.User.Login,
		Comment:    event.Comment.Body,
	}, true, nil
}
