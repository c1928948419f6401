package catalog

import "time"

type productRequest struct {
	Title    string   `json:"title"`
	Size     string   `json:"size"`
	Color    string   `json:"color"`
	Price    *float64 `json:"price"`
	Category string   `json:"category"`
	Image    string   `json:"image"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

type productResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Size      string    `json:"size"`
	Color     string    `json:"color"`
	Price     float64   `json:"price"`
	Category  string    `json:"category"`
	Image     string    `json:"image"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type categoryResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UsageCount int       `json:"usageCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type imageResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (r productRequest) input() ProductInput {
	in := ProductInput{
		Title:    r.Title,
		Size:     r.Size,
		Color:    r.Color,
		Category: r.Category,
		Image:    r.Image,
	}
	if r.Price != nil {
		in.Price = *r.Price
	}
	return in
}

func toCategoryResponse(c Category) categoryResponse {
	return categoryResponse{
		ID:         c.ID,
		Name:       c.Name,
		UsageCount: c.Usage,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
