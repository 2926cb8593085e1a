package devenv

// CrawlTemplate is a starting crawl.json5 for a Wix style forum.
const CrawlTemplate = `{
  forum_url: "https://example.com/forum",
  timezone: "",
  selectors: {
    category_item: "[data-hook='categories-list-item']",
    category_title: "[data-hook='category-title']",
    category_link: "a",
    category_description: "[data-hook='category-description']",
    subcategory_item: "[data-hook='subcategories-list-item']",
    subcategory_title: "[data-hook='category-title']",
    subcategory_link: "a",
    post_item: "[data-hook='post-list-item']",
    post_title: "[data-hook='post-title']",
    post_link: "a",
    post_author: "[data-hook='user-name']",
    post_date: "[data-hook='time-ago']",
    post_content: "[data-hook='post-description']",
    comment_item: "[data-hook='comment']",
    comment_author: "[data-hook='user-name']",
    comment_date: "[data-hook='time-ago']",
    comment_content: "[data-hook='comment-content']",
    attachment_link: "a[href*='.pdf'], a[download]",
    load_more: "[data-hook='load-more-button']",
  },
  auth: { enabled: false },
  parsing: {
    renderer: "chrome",
    headless: true,
    page_load_timeout_sec: 30,
    grace_period_ms: 2000,
    delay_between_requests_ms: 1500,
    max_load_more_rounds: 20,
    workers: 1,
  },
  attachments: {
    download_dir: "<dev_state>/downloads",
    allowed_extensions: [".pdf", ".doc", ".docx", ".xls", ".xlsx", ".jpg", ".png", ".zip"],
    max_file_size_mb: 50,
  },
  export: { output_dir: "<dev_state>/exports" },
}
`

// ImportTemplate is a starting import.json5, the api key is expected in .env
// as DISCOURSE_API_KEY.
const ImportTemplate = `{
  discourse_url: "http://localhost:3000",
  api: { username: "system" },
  import: {
    dry_run: true,
    delay_between_requests_ms: 1000,
    mapping_db: "<dev_state>/mapping.db",
  },
  content: {
    convert_to_markdown: true,
    preserve_dates: true,
    add_disclaimer: true,
    disclaimer_text: "*Imported from the old forum. Originally posted {date} by {author}.*",
  },
  attachments: { upload_attachments: true, max_file_size_mb: 10 },
  stats: { save_stats: true, stats_file: "<dev_state>/import_stats.json" },
}
`
