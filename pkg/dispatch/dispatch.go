// Package dispatch runs agent assignments end to end: it resolves the
// target item, prepares a working repository on GitHub (fork, or create
// and copy when forking is refused), writes agents.md, and hands the work
// to the selected coding agent. Progress is relayed through the progress
// broker so the UI can stream it; outcomes land in the assignment history.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"aifoundry/pkg/catalog"
	"aifoundry/pkg/github"
	"aifoundry/pkg/logx"
	"aifoundry/pkg/metrics"
	"aifoundry/pkg/persistence"
	"aifoundry/pkg/progress"
	"aifoundry/pkg/specstore"
	"aifoundry/pkg/templates"
)

// Supported agent ids.
const (
	AgentDevin   = "devin"
	AgentCopilot = "github-copilot"
	AgentCodex   = "codex-cli"
	AgentClaude  = "claude"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial_success"
	StatusError   = "error"
)

// ActionManualFork tells the client that GitHub refused automated
// repository setup and the user must fork the source themselves.
const ActionManualFork = "manual_fork_required"

// forkSettleDelay gives GitHub time to materialize a fork before we
// start writing into it.
const forkSettleDelay = 2 * time.Second

// ErrItemNotFound is returned when the assignment target does not match
// any template, pattern, or specification.
var ErrItemNotFound = errors.New("item not found")

// Customization is the user-supplied branding and scenario payload
// rendered into agents.md and agent prompts.
type Customization struct {
	CustomerScenario       string `json:"customer_scenario"`
	BrandTheme             string `json:"brand_theme"`
	PrimaryColor           string `json:"primary_color"`
	CompanyName            string `json:"company_name"`
	Industry               string `json:"industry"`
	UseCase                string `json:"use_case"`
	AdditionalRequirements string `json:"additional_requirements"`
	UseMCPTools            bool   `json:"use_mcp_tools"`
	UseA2A                 bool   `json:"use_a2a"`
	Owner                  string `json:"owner,omitempty"`
	Repo                   string `json:"repo,omitempty"`
}

// Request carries everything an assignment needs. Vendor credentials
// pass through to the vendor APIs and are never stored.
type Request struct {
	AgentID       string                   `json:"agent_id"`
	APIKey        string                   `json:"api_key,omitempty"`
	Endpoint      string                   `json:"endpoint,omitempty"`
	GitHubToken   string                   `json:"github_token,omitempty"`
	GitHubPAT     string                   `json:"github_pat,omitempty"`
	PreferImport  bool                     `json:"prefer_import,omitempty"`
	Customization Customization            `json:"customization"`
	TaskID        string                   `json:"task_id,omitempty"`
	TaskDetails   *specstore.TaskBreakdown `json:"task_details,omitempty"`
	Mode          string                   `json:"mode,omitempty"`
	SelectedTasks []string                 `json:"selected_tasks,omitempty"`
}

// writeToken prefers the personal access token over the OAuth token for
// repository mutations.
func (r Request) writeToken() string {
	if r.GitHubPAT != "" {
		return r.GitHubPAT
	}
	return r.GitHubToken
}

// Result is the outcome of a single assignment.
type Result struct {
	Status            string `json:"status"`
	Agent             string `json:"agent"`
	Message           string `json:"message,omitempty"`
	RepositoryURL     string `json:"repository_url,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	SessionURL        string `json:"session_url,omitempty"`
	IssueURL          string `json:"issue_url,omitempty"`
	IssueNumber       int    `json:"issue_number,omitempty"`
	Action            string `json:"action,omitempty"`
	ForkURL           string `json:"fork_url,omitempty"`
	SuggestedOwner    string `json:"suggested_owner,omitempty"`
	SuggestedRepo     string `json:"suggested_repo,omitempty"`
	SourceRepo        string `json:"source_repo,omitempty"`
	SetupInstructions string `json:"setup_instructions,omitempty"`
	TaskID            string `json:"task_id,omitempty"`
}

func errorResult(agent, format string, args ...any) *Result {
	return &Result{Status: StatusError, Agent: agent, Message: fmt.Sprintf(format, args...)}
}

func manualForkResult(agent, srcOwner, srcRepo, owner, name string) *Result {
	source := srcOwner + "/" + srcRepo
	return &Result{
		Status:         StatusPartial,
		Agent:          agent,
		Action:         ActionManualFork,
		Message:        fmt.Sprintf("GitHub blocked automated setup of %s. Fork it manually, then resume the assignment.", source),
		ForkURL:        fmt.Sprintf("https://github.com/%s/fork", source),
		SuggestedOwner: owner,
		SuggestedRepo:  name,
		SourceRepo:     source,
	}
}

// Dispatcher coordinates assignments across GitHub and the agent vendors.
type Dispatcher struct {
	catalog  *catalog.Store
	specs    *specstore.Store
	renderer *templates.Renderer
	broker   *progress.Broker
	history  *persistence.Store
	recorder *metrics.Recorder
	logger   *logx.Logger

	devinBase string
	newGitHub func(token string) *github.Client
	newDevin  func(apiKey string) *DevinClient
	checkKey  func(ctx context.Context, apiKey string) error
	sleep     func(d time.Duration)
}

// DispatcherOption overrides a Dispatcher collaborator, mainly for tests.
type DispatcherOption func(*Dispatcher)

// WithGitHubFactory replaces how per-request GitHub clients are built.
func WithGitHubFactory(f func(token string) *github.Client) DispatcherOption {
	return func(d *Dispatcher) { d.newGitHub = f }
}

// WithDevinFactory replaces how Devin clients are built.
func WithDevinFactory(f func(apiKey string) *DevinClient) DispatcherOption {
	return func(d *Dispatcher) { d.newDevin = f }
}

// WithAnthropicCheck replaces the Anthropic key validation call.
func WithAnthropicCheck(f func(ctx context.Context, apiKey string) error) DispatcherOption {
	return func(d *Dispatcher) { d.checkKey = f }
}

// WithSleep replaces the settle delay between fork and first write.
func WithSleep(f func(d time.Duration)) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = f }
}

// NewDispatcher wires a dispatcher against the given stores and broker.
// history and recorder may be nil.
func NewDispatcher(devinBase string, cat *catalog.Store, specs *specstore.Store,
	broker *progress.Broker, history *persistence.Store, recorder *metrics.Recorder,
	opts ...DispatcherOption) (*Dispatcher, error) {

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		catalog:   cat,
		specs:     specs,
		renderer:  renderer,
		broker:    broker,
		history:   history,
		recorder:  recorder,
		logger:    logx.NewLogger("dispatch"),
		devinBase: devinBase,
		newGitHub: func(token string) *github.Client { return github.NewClient(token) },
		sleep:     time.Sleep,
	}
	d.newDevin = func(apiKey string) *DevinClient { return NewDevinClient(d.devinBase, apiKey) }
	d.checkKey = func(ctx context.Context, apiKey string) error {
		return validateAnthropicKey(ctx, apiKey)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// source is a resolved assignment target.
type source struct {
	kind    string // template, pattern, spec
	id      string
	title   string
	repoURL string
	doc     templates.DocTemplate
	data    templates.DocData
	spec    specstore.Spec
}

// defaultRepoName picks the new repository name when the user did not
// supply one.
func (s source) defaultRepoName() string {
	if s.repoURL != "" {
		if _, name, err := github.ParseRepoURL(s.repoURL); err == nil {
			return name
		}
	}
	if s.kind == "spec" {
		return specstore.Slugify(s.title) + "-implementation"
	}
	return specstore.Slugify(s.title)
}

// resolveItem looks the target up across templates, patterns, and specs.
func (d *Dispatcher) resolveItem(itemID string) (source, error) {
	if tpl, ok := d.catalog.Get(itemID); ok {
		return source{
			kind:    "template",
			id:      tpl.ID,
			title:   tpl.Title,
			repoURL: tpl.GitHubURL,
			doc:     templates.AgentsTemplateDoc,
			data: templates.DocData{
				Title:       tpl.Title,
				Description: tpl.Description,
				Collection:  tpl.Collection,
				Task:        tpl.Task,
				Languages:   tpl.Languages,
				Models:      tpl.Models,
				Databases:   tpl.Databases,
				SourceURL:   tpl.GitHubURL,
				ItemType:    "template",
			},
		}, nil
	}
	if pat, ok := catalog.PatternByID(itemID); ok {
		return source{
			kind:  "pattern",
			id:    pat.ID,
			title: pat.Title,
			doc:   templates.AgentsPatternDoc,
			data: templates.DocData{
				Title:       pat.Title,
				Description: pat.Description,
				PatternType: pat.Type,
				UseCases:    pat.UseCases,
				SourceURL:   pat.DocURL,
				ItemType:    "pattern",
			},
		}, nil
	}
	if d.specs != nil {
		if spec, err := d.specs.Get(itemID); err == nil {
			content := spec.Specification
			if content == "" {
				content = spec.Content
			}
			return source{
				kind:  "spec",
				id:    spec.ID,
				title: spec.Title,
				doc:   templates.AgentsSpecDoc,
				spec:  spec,
				data: templates.DocData{
					Title:       spec.Title,
					Description: spec.Description,
					Content:     content,
					ItemType:    "specification",
				},
			}, nil
		}
	}
	return source{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// validateCredentials rejects an assignment before any network call when
// the selected agent's credentials are missing. The Anthropic key is
// additionally checked against the vendor API.
func (d *Dispatcher) validateCredentials(ctx context.Context, req Request) error {
	if req.writeToken() == "" {
		return errors.New("GitHub token is required")
	}
	switch req.AgentID {
	case AgentDevin:
		if req.APIKey == "" {
			return errors.New("Devin API key is required")
		}
	case AgentCodex:
		if req.APIKey == "" || req.Endpoint == "" {
			return errors.New("Azure OpenAI API key and endpoint are required")
		}
	case AgentClaude:
		if req.APIKey == "" {
			return errors.New("Anthropic API key is required")
		}
		if err := d.checkKey(ctx, req.APIKey); err != nil {
			return err
		}
	case AgentCopilot:
		// Copilot runs on the user's GitHub token alone.
	default:
		return fmt.Errorf("unknown agent: %s", req.AgentID)
	}
	return nil
}

// Assign runs a full assignment for the given item and streams progress
// under jobID. The returned result is also published as the final done
// event and recorded in the assignment history.
func (d *Dispatcher) Assign(ctx context.Context, itemID, jobID string, req Request) *Result {
	start := time.Now()
	res, login, src := d.assign(ctx, itemID, jobID, req)
	if res.TaskID == "" {
		res.TaskID = req.TaskID
	}
	d.finish(ctx, jobID, login, src, req, res, start)
	return res
}

func (d *Dispatcher) assign(ctx context.Context, itemID, jobID string, req Request) (*Result, string, source) {
	if err := d.validateCredentials(ctx, req); err != nil {
		return errorResult(req.AgentID, "%s", err.Error()), "", source{}
	}

	src, err := d.resolveItem(itemID)
	if err != nil {
		return errorResult(req.AgentID, "%s", err.Error()), "", src
	}
	d.broker.Publish(jobID, progress.EventResolveSource, map[string]any{
		"item": src.title, "kind": src.kind,
	})

	// Devin implements specifications in a repository it creates itself,
	// so there is no repo to prepare on our side.
	if src.kind == "spec" && req.AgentID == AgentDevin {
		return d.assignSpecToDevin(ctx, jobID, src, req), "", src
	}

	gh := d.newGitHub(req.writeToken())
	user, err := gh.AuthenticatedUser(ctx)
	if err != nil {
		return errorResult(req.AgentID, "failed to identify GitHub user: %s", err.Error()), "", src
	}

	res := d.prepareAndStart(ctx, jobID, gh, user.Login, src, req)
	return res, user.Login, src
}

// prepareAndStart sets up the working repository, writes agents.md, and
// starts the agent. The broker's cancel flag is honored between steps.
func (d *Dispatcher) prepareAndStart(ctx context.Context, jobID string, gh *github.Client,
	login string, src source, req Request) *Result {

	owner := req.Customization.Owner
	if owner == "" {
		owner = login
	}
	name := req.Customization.Repo
	if name == "" {
		name = src.defaultRepoName()
	}

	repo, res := d.prepareRepo(ctx, jobID, gh, login, owner, name, src, req)
	if res != nil {
		return res
	}
	if d.broker.IsCancelled(jobID) {
		return errorResult(req.AgentID, "assignment cancelled")
	}

	data := fillCustomization(src.data, req.Customization)
	data.RepositoryURL = repo.HTMLURL

	d.broker.Publish(jobID, progress.EventWriteAgents, map[string]any{"repository": repo.FullName})
	doc, err := d.renderer.Render(src.doc, data)
	if err != nil {
		return errorResult(req.AgentID, "failed to render agents.md: %s", err.Error())
	}
	if err := gh.PutFile(ctx, repo.Owner.Login, repo.Name, "agents.md", "Add agents.md", doc); err != nil {
		return errorResult(req.AgentID, "failed to write agents.md: %s", err.Error())
	}
	if d.broker.IsCancelled(jobID) {
		return errorResult(req.AgentID, "assignment cancelled")
	}

	d.broker.Publish(jobID, progress.EventAgentStart, map[string]any{"agent": req.AgentID})
	return d.startAgent(ctx, gh, repo, data, req)
}

// prepareRepo yields the working repository, or a terminal result when
// setup failed. Forking is attempted first unless the user prefers a
// copy; a refused fork falls back to create-and-copy.
func (d *Dispatcher) prepareRepo(ctx context.Context, jobID string, gh *github.Client,
	login, owner, name string, src source, req Request) (*github.Repo, *Result) {

	// Targets without a source repository start from an empty repo.
	if src.repoURL == "" {
		return d.createRepo(ctx, jobID, gh, login, owner, name, src, req, true)
	}

	srcOwner, srcRepo, err := github.ParseRepoURL(src.repoURL)
	if err != nil {
		return d.createRepo(ctx, jobID, gh, login, owner, name, src, req, true)
	}

	if !req.PreferImport {
		// Template repositories generate a clean copy without forking.
		if info, err := gh.GetRepo(ctx, srcOwner, srcRepo); err == nil && info.IsTemplate {
			d.broker.Publish(jobID, progress.EventCreateStart, map[string]any{
				"repository": owner + "/" + name,
			})
			repo, err := gh.GenerateFromTemplate(ctx, srcOwner, srcRepo, owner, name, false)
			if err == nil {
				d.sleep(forkSettleDelay)
				d.broker.Publish(jobID, progress.EventImportOK, map[string]any{
					"repository_url": repo.HTMLURL,
				})
				return repo, nil
			}
			d.logger.Warn("generate from template %s/%s failed, trying fork: %v", srcOwner, srcRepo, err)
		}

		d.broker.Publish(jobID, progress.EventForkStart, map[string]any{
			"source": srcOwner + "/" + srcRepo,
		})
		org := ""
		if owner != login {
			org = owner
		}
		fork, err := gh.Fork(ctx, srcOwner, srcRepo, org)
		if err == nil {
			d.sleep(forkSettleDelay)
			if res := d.rejectEmptyFork(ctx, gh, fork, req.AgentID, srcOwner, srcRepo, owner, name); res != nil {
				return nil, res
			}
			// Forks keep the source name; honor the requested one.
			if name != fork.Name {
				if renamed, rerr := gh.RenameRepo(ctx, fork.Owner.Login, fork.Name, name); rerr == nil {
					fork = renamed
				} else {
					d.logger.Warn("could not rename fork %s to %s: %v", fork.FullName, name, rerr)
				}
			}
			d.broker.Publish(jobID, progress.EventForkOK, map[string]any{
				"repository_url": fork.HTMLURL,
			})
			return fork, nil
		}
		d.logger.Warn("fork of %s/%s failed, falling back to copy: %v", srcOwner, srcRepo, err)
	}

	// Create (or reuse) the destination and replicate the source tree.
	repo, res := d.createRepo(ctx, jobID, gh, login, owner, name, src, req, false)
	if res != nil {
		return nil, res
	}

	d.broker.Publish(jobID, progress.EventPopulateStart, map[string]any{
		"source": srcOwner + "/" + srcRepo,
	})
	err = gh.CopyContents(ctx, srcOwner, srcRepo, repo.Owner.Login, repo.Name,
		func(p github.CopyProgress) {
			d.broker.Publish(jobID, progress.EventCopyProgress, map[string]any{
				"copied": p.Copied, "total": p.Total,
			})
		},
		func() bool { return d.broker.IsCancelled(jobID) },
	)
	if err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			return nil, manualForkResult(req.AgentID, srcOwner, srcRepo, owner, name)
		}
		return nil, errorResult(req.AgentID, "failed to copy repository contents: %s", err.Error())
	}
	d.broker.Publish(jobID, progress.EventCopyOK, map[string]any{
		"repository_url": repo.HTMLURL,
	})
	return repo, nil
}

// createRepo reuses an existing destination repository or creates it.
func (d *Dispatcher) createRepo(ctx context.Context, jobID string, gh *github.Client,
	login, owner, name string, src source, req Request, autoInit bool) (*github.Repo, *Result) {

	d.broker.Publish(jobID, progress.EventCreateStart, map[string]any{
		"repository": owner + "/" + name,
	})
	if existing, err := gh.GetRepo(ctx, owner, name); err == nil {
		return existing, nil
	}

	// CreateRepo targets /user/repos when org is empty.
	org := ""
	if owner != login {
		org = owner
	}
	repo, err := gh.CreateRepo(ctx, org, github.CreateRepoRequest{
		Name:        name,
		Description: "Created by AIfoundry agent workflow: " + src.title,
		AutoInit:    autoInit,
		HasIssues:   true,
	})
	if err != nil {
		var apiErr *github.APIError
		if src.repoURL != "" && errors.As(err, &apiErr) && apiErr.RateLimited() {
			srcOwner, srcRepo, perr := github.ParseRepoURL(src.repoURL)
			if perr == nil {
				return nil, manualForkResult(req.AgentID, srcOwner, srcRepo, owner, name)
			}
		}
		return nil, errorResult(req.AgentID, "failed to create repository: %s", err.Error())
	}
	return repo, nil
}

// rejectEmptyFork deletes a fork that came back without contents and
// points the user at the manual fork flow instead.
func (d *Dispatcher) rejectEmptyFork(ctx context.Context, gh *github.Client, fork *github.Repo,
	agent, srcOwner, srcRepo, owner, name string) *Result {

	empty, err := gh.RepoIsEmpty(ctx, fork.Owner.Login, fork.Name)
	if err != nil || !empty {
		return nil
	}
	if derr := gh.DeleteRepo(ctx, fork.Owner.Login, fork.Name); derr != nil {
		var apiErr *github.APIError
		if errors.As(derr, &apiErr) && apiErr.Forbidden() {
			d.logger.Warn("cannot delete empty fork %s: token lacks the delete_repo scope", fork.FullName)
		} else {
			d.logger.Warn("failed to delete empty fork %s: %v", fork.FullName, derr)
		}
	}
	res := manualForkResult(agent, srcOwner, srcRepo, owner, name)
	res.Message = fmt.Sprintf("The fork of %s/%s came back empty. Fork it manually, then resume the assignment.", srcOwner, srcRepo)
	return res
}

// startAgent hands the prepared repository to the selected agent.
func (d *Dispatcher) startAgent(ctx context.Context, gh *github.Client, repo *github.Repo,
	data templates.DocData, req Request) *Result {

	switch req.AgentID {
	case AgentDevin:
		prompt, err := d.renderer.Render(templates.DevinPromptDoc, data)
		if err != nil {
			return errorResult(req.AgentID, "failed to render prompt: %s", err.Error())
		}
		session, err := d.newDevin(req.APIKey).CreateSession(ctx, prompt)
		if err != nil {
			return errorResult(req.AgentID, "%s", err.Error())
		}
		return &Result{
			Status:        StatusSuccess,
			Agent:         AgentDevin,
			Message:       "Devin session created",
			RepositoryURL: repo.HTMLURL,
			SessionID:     session.SessionID,
			SessionURL:    session.URL,
		}

	case AgentCopilot:
		body, err := d.renderer.Render(templates.CopilotIssueDoc, data)
		if err != nil {
			return errorResult(req.AgentID, "failed to render issue body: %s", err.Error())
		}
		title := "Customize " + data.Title
		if data.CompanyName != "" {
			title += " for " + data.CompanyName
		}
		issue, err := gh.CreateIssue(ctx, repo.Owner.Login, repo.Name, title, body,
			[]string{"enhancement", "customization"})
		if err != nil {
			return errorResult(req.AgentID, "failed to create issue: %s", err.Error())
		}
		// Assigning the coding agent needs an org entitlement; a failure
		// here still leaves a usable issue.
		if err := gh.AddAssignees(ctx, repo.Owner.Login, repo.Name, issue.Number, []string{"copilot"}); err != nil {
			d.logger.Warn("could not assign copilot to %s#%d: %v", repo.FullName, issue.Number, err)
		}
		return &Result{
			Status:            StatusSuccess,
			Agent:             AgentCopilot,
			Message:           "Issue created for the Copilot coding agent",
			RepositoryURL:     repo.HTMLURL,
			IssueURL:          issue.HTMLURL,
			IssueNumber:       issue.Number,
			SetupInstructions: "https://docs.github.com/en/copilot/using-github-copilot/coding-agent",
		}

	case AgentCodex:
		wf, err := templates.CodexWorkflow()
		if err != nil {
			return errorResult(req.AgentID, "failed to build workflow: %s", err.Error())
		}
		if err := gh.PutFile(ctx, repo.Owner.Login, repo.Name,
			".github/workflows/azure-codex.yml", "Add Azure OpenAI agent workflow", wf); err != nil {
			return errorResult(req.AgentID, "failed to write workflow: %s", err.Error())
		}
		return &Result{
			Status:        StatusSuccess,
			Agent:         AgentCodex,
			Message:       "Workflow installed. Add AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT as repository secrets to run it.",
			RepositoryURL: repo.HTMLURL,
		}

	case AgentClaude:
		wf, err := templates.ClaudeWorkflow()
		if err != nil {
			return errorResult(req.AgentID, "failed to build workflow: %s", err.Error())
		}
		if err := gh.PutFile(ctx, repo.Owner.Login, repo.Name,
			".github/workflows/claude-agent.yml", "Add Claude agent workflow", wf); err != nil {
			return errorResult(req.AgentID, "failed to write workflow: %s", err.Error())
		}
		return &Result{
			Status:        StatusSuccess,
			Agent:         AgentClaude,
			Message:       "Workflow installed. Add ANTHROPIC_API_KEY as a repository secret to run it.",
			RepositoryURL: repo.HTMLURL,
		}
	}
	return errorResult(req.AgentID, "unknown agent: %s", req.AgentID)
}

// Resume re-enters an assignment after the user forked the source by
// hand. The target repository must exist and hold content.
func (d *Dispatcher) Resume(ctx context.Context, itemID, jobID string, req Request) *Result {
	start := time.Now()
	res, login, src := d.resume(ctx, itemID, jobID, req)
	d.finish(ctx, jobID, login, src, req, res, start)
	return res
}

func (d *Dispatcher) resume(ctx context.Context, itemID, jobID string, req Request) (*Result, string, source) {
	if err := d.validateCredentials(ctx, req); err != nil {
		return errorResult(req.AgentID, "%s", err.Error()), "", source{}
	}
	src, err := d.resolveItem(itemID)
	if err != nil {
		return errorResult(req.AgentID, "%s", err.Error()), "", src
	}
	d.broker.Publish(jobID, progress.EventResolveSource, map[string]any{
		"item": src.title, "kind": src.kind,
	})

	gh := d.newGitHub(req.writeToken())
	user, err := gh.AuthenticatedUser(ctx)
	if err != nil {
		return errorResult(req.AgentID, "failed to identify GitHub user: %s", err.Error()), "", src
	}

	owner := req.Customization.Owner
	if owner == "" {
		owner = user.Login
	}
	name := req.Customization.Repo
	if name == "" {
		name = src.defaultRepoName()
	}

	repo, err := gh.GetRepo(ctx, owner, name)
	if err != nil {
		return errorResult(req.AgentID, "repository %s/%s not found; fork the source first", owner, name), user.Login, src
	}
	if empty, err := gh.RepoIsEmpty(ctx, owner, name); err == nil && empty {
		return errorResult(req.AgentID, "repository %s/%s is empty; complete the fork first", owner, name), user.Login, src
	}

	data := fillCustomization(src.data, req.Customization)
	data.RepositoryURL = repo.HTMLURL

	d.broker.Publish(jobID, progress.EventWriteAgents, map[string]any{"repository": repo.FullName})
	doc, rerr := d.renderer.Render(src.doc, data)
	if rerr != nil {
		return errorResult(req.AgentID, "failed to render agents.md: %s", rerr.Error()), user.Login, src
	}
	if err := gh.PutFile(ctx, repo.Owner.Login, repo.Name, "agents.md", "Add agents.md", doc); err != nil {
		return errorResult(req.AgentID, "failed to write agents.md: %s", err.Error()), user.Login, src
	}

	d.broker.Publish(jobID, progress.EventAgentStart, map[string]any{"agent": req.AgentID})
	return d.startAgent(ctx, gh, repo, data, req), user.Login, src
}

// finish publishes the done event, records history, and counts metrics.
func (d *Dispatcher) finish(ctx context.Context, jobID, login string, src source,
	req Request, res *Result, start time.Time) {

	done := map[string]any{"status": res.Status}
	if res.Message != "" {
		done["message"] = res.Message
	}
	if res.Action != "" {
		done["action"] = res.Action
	}
	d.broker.Publish(jobID, progress.EventDone, done)

	if d.recorder != nil {
		d.recorder.RecordDispatch(req.AgentID, res.Status, time.Since(start))
	}
	if d.history != nil && login != "" && src.id != "" {
		if _, err := d.history.RecordAssignment(ctx, persistence.Assignment{
			UserID:        login,
			UserLogin:     login,
			ItemID:        src.id,
			ItemTitle:     src.title,
			AgentID:       req.AgentID,
			Status:        res.Status,
			RepositoryURL: res.RepositoryURL,
			SessionURL:    res.SessionURL,
			IssueURL:      res.IssueURL,
			Customization: toMap(req.Customization),
			Result:        toMap(res),
		}); err != nil {
			d.logger.Error("failed to record assignment: %v", err)
		}
	}
	d.logger.Info("assignment finished: item=%s agent=%s status=%s", src.id, req.AgentID, res.Status)
	d.broker.Forget(jobID)
}

func fillCustomization(data templates.DocData, c Customization) templates.DocData {
	data.CompanyName = c.CompanyName
	data.Industry = c.Industry
	data.UseCase = c.UseCase
	data.BrandTheme = c.BrandTheme
	data.PrimaryColor = c.PrimaryColor
	data.CustomerScenario = c.CustomerScenario
	data.AdditionalRequirements = c.AdditionalRequirements
	data.UseMCPTools = c.UseMCPTools
	data.UseA2A = c.UseA2A
	return data
}

// toMap round-trips a struct through JSON for the history's generic
// columns, dropping empty string fields.
func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	for k, val := range m {
		if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
			delete(m, k)
		}
	}
	return m
}
