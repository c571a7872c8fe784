package webserver

const panelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Clippy</title>
    <meta charset="utf-8">
    <style>
        body { margin: 0; font-family: sans-serif; background: #1e1e2e; color: #e0e0e0; display: flex; flex-direction: column; height: 100vh; }
        header { padding: 8px 12px; color: #8A7FD8; font-weight: bold; display: flex; justify-content: space-between; }
        #messages { flex: 1; overflow-y: auto; padding: 12px; }
        .msg { margin-bottom: 12px; white-space: pre-wrap; }
        .user { color: #7aa2f7; }
        .assistant { color: #9ece6a; }
        #toast { display: none; background: #e0af68; color: #000; padding: 6px 12px; }
        form { display: flex; padding: 8px; gap: 8px; }
        input { flex: 1; padding: 8px; background: #11111b; color: #e0e0e0; border: 1px solid #555; border-radius: 4px; }
        button { padding: 8px 12px; }
    </style>
</head>
<body>
    <header><span>Clippy</span><button id="clear">Clear</button></header>
    <div id="messages"></div>
    <div id="toast"></div>
    <form id="ask">
        <input id="text" autocomplete="off" placeholder="Ask Clippy something...">
        <button type="submit">Send</button>
    </form>
    <script>
        const messages = document.getElementById('messages');
        const toast = document.getElementById('toast');
        const input = document.getElementById('text');
        const protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(protocol + '//' + window.location.host + '/ws');

        function add(cls, label, text) {
            const div = document.createElement('div');
            div.className = 'msg ' + cls;
            div.textContent = label + ': ' + text;
            messages.appendChild(div);
            messages.scrollTop = messages.scrollHeight;
        }

        function showToast(text) {
            toast.textContent = text;
            toast.style.display = 'block';
            setTimeout(function() { toast.style.display = 'none'; }, 8000);
        }

        ws.onmessage = function(event) {
            const msg = JSON.parse(event.data);
            switch (msg.command) {
            case 'showResponse':
                add('assistant', 'Clippy', msg.text);
                break;
            case 'toast':
                showToast(msg.text);
                break;
            case 'promptKey':
                const key = window.prompt(msg.text);
                if (key) {
                    ws.send(JSON.stringify({command: 'key', text: key}));
                } else {
                    ws.send(JSON.stringify({command: 'cancelKey'}));
                }
                break;
            case 'cleared':
                messages.innerHTML = '';
                break;
            }
        };

        ws.onclose = function() { showToast('Connection closed.'); };

        document.getElementById('ask').addEventListener('submit', function(e) {
            e.preventDefault();
            const text = input.value.trim();
            if (!text) { return; }
            add('user', 'You', text);
            ws.send(JSON.stringify({command: 'ask', text: text}));
            input.value = '';
        });

        document.getElementById('clear').addEventListener('click', function() {
            fetch('/api/clear', {method: 'POST'});
        });
    </script>
</body>
</html>`
