package monday

// Paginator decides the token for the next request from the previous
// token and the response it produced. Implementations hold configuration
// only; the walk position travels in the token.
type Paginator interface {
	Initial() PageToken
	Next(prev PageToken, resp *Response, lastPageSize int) (PageToken, bool)
}

const startPage = 1

// ItemPagination walks boards one at a time and, within a board, numbered
// sub-pages of PageSize records.
type ItemPagination struct {
	PageSize int
}

func (p ItemPagination) Initial() PageToken {
	return PageToken{Page: startPage, SubPage: startPage}
}

func (p ItemPagination) Next(prev PageToken, resp *Response, lastPageSize int) (PageToken, bool) {
	if p.PageSize > 0 && lastPageSize >= p.PageSize {
		return PageToken{Page: prev.Page, SubPage: prev.SubPage + 1}, true
	}
	data := responseData(resp)
	if !truthy(data["boards"]) {
		return PageToken{}, false
	}
	return PageToken{Page: prev.Page + 1, SubPage: startPage}, true
}

// ItemCursorPagination walks boards by page number and the items of each
// board by the cursor the API hands back. Requests must ask for one board
// per page.
type ItemCursorPagination struct{}

func (ItemCursorPagination) Initial() PageToken {
	return PageToken{Page: startPage, SubPage: startPage}
}

func (ItemCursorPagination) Next(prev PageToken, resp *Response, _ int) (PageToken, bool) {
	data := responseData(resp)

	var cursor string
	if boards, ok := data["boards"].([]any); ok && len(boards) > 0 {
		board, _ := boards[0].(map[string]any)
		page, _ := board["items_page"].(map[string]any)
		cursor, _ = page["cursor"].(string)
	} else if next, ok := data["next_items_page"].(map[string]any); ok && len(next) > 0 {
		cursor, _ = next["cursor"].(string)
	} else {
		return PageToken{}, false
	}

	if cursor != "" {
		return PageToken{Page: prev.Page, Cursor: cursor}, true
	}
	return PageToken{Page: prev.Page + 1}, true
}

// PageIncrement is the plain single-level strategy: keep asking for the
// next page while pages come back full.
type PageIncrement struct {
	PageSize int
}

func (p PageIncrement) Initial() PageToken {
	return PageToken{Page: startPage}
}

func (p PageIncrement) Next(prev PageToken, _ *Response, lastPageSize int) (PageToken, bool) {
	if p.PageSize <= 0 || lastPageSize < p.PageSize {
		return PageToken{}, false
	}
	return PageToken{Page: prev.Page + 1}, true
}

func responseData(resp *Response) map[string]any {
	bodies, err := JSONDecoder{}.Decode(resp)
	if err != nil || len(bodies) == 0 {
		return nil
	}
	data, _ := bodies[0]["data"].(map[string]any)
	return data
}
