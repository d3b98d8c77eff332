package server

import "github.com/gofiber/fiber/v2"

func (s *Server) handleScanPage(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(scanPageHTML)
}

// scanPageHTML is the desk scanning page. Kept as one embedded document so
// the binary stays self-contained; the desk machines load nothing else.
const scanPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Circulation Desk</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 640px; margin: 2rem auto; padding: 0 1rem; }
  h1 { font-size: 1.4rem; }
  label { display: block; margin-top: 1rem; font-weight: 600; }
  input, select, button { font-size: 1.1rem; padding: .5rem; width: 100%; box-sizing: border-box; }
  button { margin-top: 1.5rem; cursor: pointer; }
  #result { margin-top: 1.5rem; padding: 1rem; border-radius: 6px; display: none; }
  #result.ok { display: block; background: #e6f7e6; }
  #result.err { display: block; background: #fdecea; }
  #reader { margin-top: .5rem; color: #555; }
</style>
</head>
<body>
<h1>Circulation Desk</h1>
<form id="desk">
  <label for="barcode">Book barcode</label>
  <input id="barcode" name="barcode" autocomplete="off" autofocus required>

  <label for="cardcode">Reader card barcode</label>
  <input id="cardcode" name="cardcode" autocomplete="off">
  <div id="reader"></div>

  <label for="action">Action</label>
  <select id="action" name="action">
    <option value="issue">Issue</option>
    <option value="return">Return</option>
  </select>

  <label for="loan_days">Loan days</label>
  <input id="loan_days" name="loan_days" type="number" value="14" min="1">

  <button type="submit">Submit</button>
</form>
<div id="result"></div>
<script>
const form = document.getElementById('desk');
const result = document.getElementById('result');
const reader = document.getElementById('reader');

document.getElementById('cardcode').addEventListener('change', async (e) => {
  reader.textContent = '';
  const cc = e.target.value.trim();
  if (!cc) return;
  const resp = await fetch('/api/readers/search-by-cardcode?cardcode=' + encodeURIComponent(cc));
  const body = await resp.json();
  if (body.success && body.data) {
    const f = Object.fromEntries((body.data.fields || []).map(x => [x.code, x.value]));
    reader.textContent = (f.FIRST_NAME || '') + ' ' + (f.LAST_NAME || '');
  } else {
    reader.textContent = 'reader not found';
  }
});

form.addEventListener('submit', async (e) => {
  e.preventDefault();
  result.className = '';
  result.textContent = 'working…';
  result.style.display = 'block';
  const resp = await fetch('/submit', { method: 'POST', body: new FormData(form) });
  const body = await resp.json();
  result.className = body.success ? 'ok' : 'err';
  result.textContent = body.message || (body.success ? 'done' : 'failed');
  if (body.success) { form.reset(); document.getElementById('barcode').focus(); }
});
</script>
</body>
</html>
`
