package server

import (
	"time"

	"agora/internal/models"
	"agora/internal/service"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthorSummary identifies the author of a post or comment.
type AuthorSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// CommunitySummary identifies the community a post belongs to.
type CommunitySummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User    UserResponse `json:"user"`
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
}

type CommunityResponse struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Owner         *uint     `json:"owner"`
	OwnerUsername *string   `json:"owner_username"`
	MemberCount   int64     `json:"member_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type MemberResponse struct {
	ID       uint      `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type PostResponse struct {
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Author        *AuthorSummary    `json:"author"`
	Community     *CommunitySummary `json:"community"`
	ImageURL      *string           `json:"image_url"`
	LikeCount     int64             `json:"like_count"`
	CommentCount  int64             `json:"comment_count"`
	ShareCount    int64             `json:"share_count"`
	IsLikedByUser bool              `json:"is_liked_by_user"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CommentResponse is one comment with its nested replies. Replies is always
// present, empty for leaves and for every entry of a flat listing.
type CommentResponse struct {
	ID            uint              `json:"id"`
	Content       string            `json:"content"`
	Author        *AuthorSummary    `json:"author"`
	PostID        uint              `json:"post_id"`
	Parent        *uint             `json:"parent"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	LikeCount     int64             `json:"like_count"`
	IsLikedByUser bool              `json:"is_liked_by_user"`
	Replies       []CommentResponse `json:"replies"`
}

type CommentThreadResponse struct {
	PostID       uint              `json:"post_id"`
	PostTitle    string            `json:"post_title"`
	CommentCount int64             `json:"comment_count"`
	Comments     []CommentResponse `json:"comments"`
}

type SuggestionResponse struct {
	ID            uint          `json:"id"`
	SuggestedUser *UserResponse `json:"suggested_user"`
	Reason        string        `json:"reason"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ImageUploadResponse is the API response after uploading an image.
type ImageUploadResponse struct {
	ID        uint   `json:"id"`
	Hash      string `json:"hash"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	URL       string `json:"url"`
	WebPURL   string `json:"webp_url"`
}

type TrendingResponse struct {
	Communities []CommunityResponse `json:"communities"`
	Posts       []PostResponse      `json:"posts"`
}

// PageResponse is a paginated listing.
type PageResponse[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func toUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out
}

func toAuthorSummary(u *models.User, id uint) *AuthorSummary {
	if u == nil {
		return &AuthorSummary{ID: id}
	}
	return &AuthorSummary{ID: u.ID, Username: u.Username}
}

func toCommunityResponse(c *models.Community) CommunityResponse {
	resp := CommunityResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Owner:       c.OwnerID,
		MemberCount: c.MemberCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.Owner != nil {
		name := c.Owner.Username
		resp.OwnerUsername = &name
	}
	return resp
}

func toCommunityResponses(communities []*models.Community) []CommunityResponse {
	out := make([]CommunityResponse, 0, len(communities))
	for _, c := range communities {
		out = append(out, toCommunityResponse(c))
	}
	return out
}

func toMemberResponses(members []models.Membership) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp := MemberResponse{ID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt}
		if m.User != nil {
			resp.Username = m.User.Username
		}
		out = append(out, resp)
	}
	return out
}

func toPostResponse(p *models.Post) PostResponse {
	resp := PostResponse{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		Author:        toAuthorSummary(p.Author, p.AuthorID),
		Community:     &CommunitySummary{ID: p.CommunityID},
		LikeCount:     p.LikesCount,
		CommentCount:  p.CommentCount,
		ShareCount:    p.ShareCount,
		IsLikedByUser: p.IsLikedByUser,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Community != nil {
		resp.Community.Name = p.Community.Name
	}
	if p.ImageURL != "" {
		url := p.ImageURL
		resp.ImageURL = &url
	}
	return resp
}

func toPostResponses(posts []*models.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	return out
}

func toCommentResponse(c *models.Comment) CommentResponse {
	return CommentResponse{
		ID:            c.ID,
		Content:       c.Content,
		Author:        toAuthorSummary(c.Author, c.AuthorID),
		PostID:        c.PostID,
		Parent:        c.ParentID,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		LikeCount:     c.LikeCount,
		IsLikedByUser: c.IsLikedByUser,
		Replies:       []CommentResponse{},
	}
}

// toCommentTree renders a forest of comment nodes. Recursion depth is bounded
// by service.MaxThreadDepth.
func toCommentTree(nodes []*service.CommentNode) []CommentResponse {
	out := make([]CommentResponse, 0, len(nodes))
	for _, n := range nodes {
		resp := toCommentResponse(n.Comment)
		resp.Replies = toCommentTree(n.Replies)
		out = append(out, resp)
	}
	return out
}

func toSuggestionResponses(suggestions []models.UserSuggestion) []SuggestionResponse {
	out := make([]SuggestionResponse, 0, len(suggestions))
	for i := range suggestions {
		out = append(out, toSuggestionResponse(&suggestions[i]))
	}
	return out
}

func toSuggestionResponse(s *models.UserSuggestion) SuggestionResponse {
	resp := SuggestionResponse{ID: s.ID, Reason: s.Reason, CreatedAt: s.CreatedAt}
	if s.SuggestedUser != nil {
		u := toUserResponse(s.SuggestedUser)
		resp.SuggestedUser = &u
	}
	return resp
}

func toImageUploadResponse(img *models.Image) ImageUploadResponse {
	url := service.ImageURL(img.Hash)
	return ImageUploadResponse{
		ID:        img.ID,
		Hash:      img.Hash,
		Width:     img.Width,
		Height:    img.Height,
		SizeBytes: img.SizeBytes,
		MimeType:  img.MimeType,
		URL:       url,
		WebPURL:   url + "?format=" + service.ImageFormatWebP,
	}
}
