package forum

// Selectors maps a selector name to the css selector configured for the
// forum being crawled. Nothing about the markup is hard coded, an empty
// selector simply finds nothing.
type Selectors map[string]string

const (
	SEL_CATEGORY_ITEM        = "category_item"
	SEL_CATEGORY_TITLE       = "category_title"
	SEL_CATEGORY_LINK        = "category_link"
	SEL_CATEGORY_DESCRIPTION = "category_description"
	SEL_CATEGORY_POSTS_COUNT = "category_posts_count"

	SEL_SUBCATEGORY_ITEM        = "subcategory_item"
	SEL_SUBCATEGORY_TITLE       = "subcategory_title"
	SEL_SUBCATEGORY_LINK        = "subcategory_link"
	SEL_SUBCATEGORY_DESCRIPTION = "subcategory_description"

	SEL_POST_ITEM        = "post_item"
	SEL_POST_TITLE       = "post_title"
	SEL_POST_LINK        = "post_link"
	SEL_POST_AUTHOR      = "post_author"
	SEL_POST_DATE        = "post_date"
	SEL_POST_DESCRIPTION = "post_description"
	SEL_POST_CONTENT     = "post_content"

	SEL_COMMENT_ITEM    = "comment_item"
	SEL_COMMENT_AUTHOR  = "comment_author"
	SEL_COMMENT_DATE    = "comment_date"
	SEL_COMMENT_CONTENT = "comment_content"

	SEL_ATTACHMENT_LINK = "attachment_link"
	SEL_LOAD_MORE       = "load_more"

	SEL_LOGIN_BUTTON   = "login_button"
	SEL_LOGIN_USERNAME = "login_username"
	SEL_LOGIN_PASSWORD = "login_password"
	SEL_LOGIN_SUBMIT   = "login_submit"
)

func (s Selectors) Get(name string) string {
	return s[name]
}

// Missing returns the names among required that have no selector.
func (s Selectors) Missing(required ...string) []string {
	var out []string
	for _, name := range required {
		if s[name] == "" {
			out = append(out, name)
		}
	}
	return out
}
