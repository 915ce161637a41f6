package help

const ColdstartYAML = `# sitemap2skill Quick Start

what_it_does: "Turns a website's sitemap into a zipped AI skill bundle of Markdown reference files"

commands:
  basic_build: |
    sitemap2skill build --sitemap "https://docs.example.com/sitemap.xml"

  named_skill: |
    sitemap2skill build --sitemap "https://docs.example.com/sitemap.xml" \
      --name example-docs --description "Example product documentation" \
      --output example-docs.zip

  polite_crawl: |
    sitemap2skill build --sitemap "https://docs.example.com/sitemap.xml" \
      --rate 1 --concurrency 2 --respect-robots

  scoped_build: |
    sitemap2skill build --sitemap "https://docs.example.com/sitemap.xml" \
      --include "/docs/**" --exclude "/docs/archive/**" --max-pages 200

  preview_urls: |
    sitemap2skill resolve --sitemap "https://docs.example.com/sitemap.xml"

  inspect_bundle: |
    sitemap2skill inspect example-docs.zip

  run_history: |
    sitemap2skill build --sitemap "https://docs.example.com/sitemap.xml" --history
    sitemap2skill runs
    sitemap2skill runs show <run_id>

  config_file: |
    sitemap2skill build --config build.yaml

bundle_layout:
  - "SKILL.md (front matter name/description, overview, reference index table)"
  - "README.md (install note)"
  - "references/<url path>.md (one file per converted page, front matter source_url)"

key_files:
  - "<output>.zip (the bundle)"
  - "<output>.report.yaml (run report: discovered, succeeded, failed URLs with reasons)"

defaults:
  concurrency: 5
  rate_per_second: 2
  max_retries: 2
  request_timeout: 30s
  extract_mode: denylist

error_behavior:
  - "Unreachable or malformed sitemap: abort before any page fetch"
  - "Per-page errors: recorded in the report, never abort the run"
  - "No page converted: no bundle is written"
  - "Ctrl-C: stop fetching, package what already converted"
  - "Exit codes: 0=success, 1=partial failure, 2=complete failure"
`
