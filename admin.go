package blogadmin

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/posts"
	"github.com/eringen/blogadmin/session"
	"github.com/eringen/blogadmin/views"
)

const maxSections = 20

var errPostNotFound = errors.New("post not found")

// postForm is the text content of the creation form.
type postForm struct {
	Title     string
	IntroText string
	Sections  []views.SectionField
}

func (a *App) handleNewPost(c echo.Context) error {
	n, _ := strconv.Atoi(c.QueryParam("sections"))
	form := postForm{Sections: make([]views.SectionField, clamp(n, 0, maxSections))}
	for i := range form.Sections {
		form.Sections[i].Index = i
	}
	return a.renderNewPost(c, http.StatusOK, form, nil, "")
}

func (a *App) handleCreatePost(c echo.Context) error {
	entry := sessionEntry(c)
	mf, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	form := readPostForm(mf)

	action := formValue(mf, "action")
	switch {
	case action == "add-section":
		if len(form.Sections) < maxSections {
			form.Sections = append(form.Sections, views.SectionField{Index: len(form.Sections)})
		}
		return a.renderNewPost(c, http.StatusOK, form, nil, "")
	case strings.HasPrefix(action, "remove-section-"):
		i, err := strconv.Atoi(strings.TrimPrefix(action, "remove-section-"))
		if err == nil && i >= 0 && i < len(form.Sections) {
			form.Sections = append(form.Sections[:i], form.Sections[i+1:]...)
			for j := range form.Sections {
				form.Sections[j].Index = j
			}
		}
		return a.renderNewPost(c, http.StatusOK, form, nil, "")
	}

	fieldErrors := make(map[string]string)
	if strings.TrimSpace(form.Title) == "" {
		fieldErrors["title"] = "Title is required"
	}
	if strings.TrimSpace(form.IntroText) == "" {
		fieldErrors["introText"] = "Intro text is required"
	}

	draft := posts.Draft{Title: strings.TrimSpace(form.Title), IntroText: form.IntroText}
	var assets []posts.Asset
	if asset, ok := a.formImage(mf, "headerImage", fieldErrors); ok {
		draft.HeaderImage = a.Repo.ImageURL(asset.Name)
		assets = append(assets, asset)
	}
	for _, f := range form.Sections {
		sec := posts.Section{SubHeading: f.SubHeading, SectionText: f.SectionText}
		if asset, ok := a.formImage(mf, fmt.Sprintf("picture-%d", f.Index), fieldErrors); ok {
			sec.Picture = a.Repo.ImageURL(asset.Name)
			assets = append(assets, asset)
		}
		draft.Sections = append(draft.Sections, sec)
	}
	if len(fieldErrors) > 0 {
		return a.renderNewPost(c, http.StatusUnprocessableEntity, form, fieldErrors, "")
	}

	ctx, cancel := a.storageContext(c)
	defer cancel()
	post, err := a.Repo.CreatePost(ctx, draft, assets)
	if err != nil {
		if clientGone(c) {
			return nil
		}
		fields := []zap.Field{zap.String("session", entry.ID), zap.Error(err)}
		var ue *posts.UploadError
		if errors.As(err, &ue) {
			fields = append(fields, zap.String("failed", ue.Failed), zap.Strings("stored", ue.Stored))
		}
		a.Logger.Error("create post", fields...)
		return a.renderNewPost(c, writeStatus(err), form, nil, userMessage(err))
	}

	a.Logger.Info("post created",
		zap.Int("id", post.ID),
		zap.String("slug", post.Slug),
		zap.Int("assets", len(assets)),
	)
	return c.Redirect(http.StatusSeeOther, withMessage("/", msgPostCreated))
}

func (a *App) handleShowPost(c echo.Context) error {
	entry := sessionEntry(c)
	post, err := a.lookupPost(c, entry)
	if err != nil {
		return a.lookupFailed(c, err)
	}
	return Render(c, a.Views.Post(views.PostPage{
		Site: a.site(),
		User: entry.User,
		Post: post,
		CSRF: CsrfToken(c),
	}))
}

func (a *App) handleConfirmDelete(c echo.Context) error {
	entry := sessionEntry(c)
	post, err := a.lookupPost(c, entry)
	if err != nil {
		return a.lookupFailed(c, err)
	}
	return Render(c, a.Views.ConfirmDelete(views.ConfirmDeletePage{
		Site: a.site(),
		User: entry.User,
		Post: post,
		CSRF: CsrfToken(c),
	}))
}

func (a *App) handleDeletePost(c echo.Context) error {
	entry := sessionEntry(c)
	id, ok := parseID(c.Param("id"))
	if !ok {
		return echo.ErrNotFound
	}

	ctx, cancel := a.storageContext(c)
	defer cancel()
	if err := a.Repo.DeletePost(ctx, id); err != nil {
		if clientGone(c) {
			return nil
		}
		a.Logger.Error("delete post", zap.String("session", entry.ID), zap.Int("id", id), zap.Error(err))
		return c.Redirect(http.StatusSeeOther, withMessage("/", userMessage(err)))
	}
	a.Logger.Info("post deleted", zap.Int("id", id))
	return c.Redirect(http.StatusSeeOther, withMessage("/", msgPostDeleted))
}

// lookupPost finds the post named by the :id parameter in a fresh listing.
// When the listing fails, the list cached in the session is used instead.
func (a *App) lookupPost(c echo.Context, entry session.Entry) (posts.Post, error) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return posts.Post{}, errPostNotFound
	}

	ctx, cancel := a.storageContext(c)
	defer cancel()
	list, err := a.Repo.ListPosts(ctx)
	if err != nil {
		if p, ok := posts.Find(entry.Posts, id); ok && !clientGone(c) {
			a.Logger.Warn("list posts, using session copy", zap.Int("id", id), zap.Error(err))
			return p, nil
		}
		if posts.KindOf(err) == posts.KindNotFound {
			return posts.Post{}, errPostNotFound
		}
		return posts.Post{}, err
	}
	a.Sessions.SetPosts(entry.ID, list)

	p, ok := posts.Find(list, id)
	if !ok {
		return posts.Post{}, errPostNotFound
	}
	return p, nil
}

func (a *App) lookupFailed(c echo.Context, err error) error {
	if errors.Is(err, errPostNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	if clientGone(c) {
		return nil
	}
	a.Logger.Warn("load post", zap.Error(err))
	return c.Redirect(http.StatusSeeOther, withMessage("/", listingMessage(err)))
}

func (a *App) renderNewPost(c echo.Context, code int, form postForm, fieldErrors map[string]string, msg string) error {
	return RenderStatus(c, code, a.Views.NewPost(views.NewPostPage{
		Site:      a.site(),
		User:      sessionEntry(c).User,
		Title:     form.Title,
		IntroText: form.IntroText,
		Sections:  form.Sections,
		Errors:    fieldErrors,
		Message:   msg,
		CSRF:      CsrfToken(c),
	}))
}

// formImage validates the optional upload in field. Problems are recorded
// in fieldErrors under the field name.
func (a *App) formImage(mf *multipart.Form, field string, fieldErrors map[string]string) (posts.Asset, bool) {
	files := mf.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return posts.Asset{}, false
	}
	asset, err := readImage(files[0])
	if err != nil {
		a.Logger.Debug("rejected upload", zap.String("field", field), zap.String("file", files[0].Filename), zap.Error(err))
		fieldErrors[field] = imageErrorText(err)
		return posts.Asset{}, false
	}
	return asset, true
}

func imageErrorText(err error) string {
	switch {
	case errors.Is(err, errImageTooLarge):
		return "File too large (max 10MB)"
	case errors.Is(err, errImageName):
		return "File name is missing"
	default:
		return "Invalid image"
	}
}

// writeStatus is the response code of a failed create.
func writeStatus(err error) int {
	switch posts.KindOf(err) {
	case posts.KindConflict:
		return http.StatusConflict
	case posts.KindInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func readPostForm(mf *multipart.Form) postForm {
	n, _ := strconv.Atoi(formValue(mf, "sections"))
	form := postForm{
		Title:     formValue(mf, "title"),
		IntroText: formValue(mf, "introText"),
		Sections:  make([]views.SectionField, clamp(n, 0, maxSections)),
	}
	for i := range form.Sections {
		form.Sections[i] = views.SectionField{
			Index:       i,
			SubHeading:  formValue(mf, fmt.Sprintf("subHeading-%d", i)),
			SectionText: formValue(mf, fmt.Sprintf("sectionText-%d", i)),
		}
	}
	return form
}

func formValue(mf *multipart.Form, key string) string {
	if vs := mf.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// sessionEntry returns the entry stored by requireSession.
func sessionEntry(c echo.Context) session.Entry {
	entry, _ := c.Get(entryKey).(session.Entry)
	return entry
}
