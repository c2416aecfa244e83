package stream

import "fmt"

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Virtual Security Camera</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
        .container { max-width: 800px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
        .stream { border: 2px solid #333; border-radius: 8px; }
        .info { background: #f0f0f0; padding: 15px; border-radius: 4px; margin-bottom: 20px; }
        .security-badge { background: #4CAF50; color: white; padding: 5px 10px; border-radius: 4px; font-size: 12px; display: inline-block; margin-left: 10px; }
        .warning { background: #fff3cd; border: 1px solid #ffeaa7; color: #856404; padding: 10px; border-radius: 4px; margin-bottom: 15px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Virtual Security Camera Stream <span class="security-badge">%[3]s</span></h1>
        %[4]s
        <div class="info">
            <p><strong>Stream URL:</strong> <a href="/stream">%[1]s://%[2]s/stream</a></p>
            <p><strong>Protocol:</strong> %[3]s</p>
            <p><strong>Status:</strong> <span id="status">Connecting...</span></p>
        </div>
        <img src="/stream" alt="Camera Stream" class="stream" style="width: 100%%; max-width: 640px;">
    </div>
    <script>
        const img = document.querySelector('img');
        const status = document.getElementById('status');

        img.onload = () => status.textContent = 'Connected';
        img.onerror = () => status.textContent = 'Connection Error';
    </script>
</body>
</html>
`

const selfSignedNotice = `<div class="warning">
            <strong>Security Notice:</strong> This connection uses a self-signed certificate.
            Your browser may show a security warning - this is normal for development/testing purposes.
        </div>`

// renderIndex builds the informational landing page for one listener.
func renderIndex(scheme, host string) string {
	notice := ""
	proto := "HTTP"
	if scheme == "https" {
		notice = selfSignedNotice
		proto = "HTTPS"
	}
	return fmt.Sprintf(indexHTML, scheme, host, proto, notice)
}
