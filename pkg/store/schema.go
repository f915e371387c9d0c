package store

const createEtagsTable = `
CREATE TABLE IF NOT EXISTS etags (
    base_url TEXT PRIMARY KEY,
    etag TEXT NOT NULL,
    page_no INTEGER NOT NULL,
    used_count INTEGER NOT NULL DEFAULT 0
);
`

const selectEtag = `
SELECT base_url, etag, page_no, used_count FROM etags WHERE base_url = ?
`

const upsertEtag = `
INSERT INTO etags (base_url, etag, page_no) VALUES (?, ?, ?)
ON CONFLICT(base_url) DO UPDATE SET etag = excluded.etag, page_no = excluded.page_no
`

const incrementUsedCount = `
UPDATE etags SET used_count = used_count + 1 WHERE base_url = ?
`
